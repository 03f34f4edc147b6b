package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/internal/events"
	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/prescription/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// PrescriptionService handles prescription business logic
type PrescriptionService struct {
	db               *database.DB
	prescriptionRepo *repository.PrescriptionRepository
	medicineRepo     *invrepo.MedicineRepository
	txRepo           *invrepo.TransactionRepository
	publisher        *events.Publisher
	logger           *logger.Logger
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(
	db *database.DB,
	prescriptionRepo *repository.PrescriptionRepository,
	medicineRepo *invrepo.MedicineRepository,
	txRepo *invrepo.TransactionRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *PrescriptionService {
	return &PrescriptionService{
		db:               db,
		prescriptionRepo: prescriptionRepo,
		medicineRepo:     medicineRepo,
		txRepo:           txRepo,
		publisher:        publisher,
		logger:           log,
	}
}

// Create records a new pending prescription. Item medicine names are
// snapshotted from the catalog so later renames do not rewrite history.
func (s *PrescriptionService) Create(ctx context.Context, p *repository.Prescription) (*repository.Prescription, error) {
	if len(p.Items) == 0 {
		return nil, errors.BadRequest("prescription must have at least one item")
	}

	for _, item := range p.Items {
		medicine, err := s.medicineRepo.GetByID(ctx, item.MedicineID)
		if err != nil {
			return nil, errors.BadRequest("unknown medicine: " + item.MedicineID)
		}
		item.MedicineName = medicine.Name
	}

	if err := s.prescriptionRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.publisher.PublishPrescriptionChanged(ctx, messaging.EventPrescriptionCreated, p.ID, p.Status, "")
	return p, nil
}

// Get loads a prescription with its items
func (s *PrescriptionService) Get(ctx context.Context, id string) (*repository.Prescription, error) {
	return s.prescriptionRepo.GetByID(ctx, id)
}

// List lists prescriptions
func (s *PrescriptionService) List(ctx context.Context, f repository.PrescriptionFilter) ([]*repository.Prescription, int64, error) {
	return s.prescriptionRepo.List(ctx, f)
}

// CheckItems verifies every prescription item against the current catalog
// state and returns one reason per failing item. An empty result means the
// prescription can be validated. Stock is only read here, never changed.
func CheckItems(items []*repository.PrescriptionItem, medicines map[string]*invrepo.Medicine, now time.Time) []string {
	var reasons []string

	for _, item := range items {
		medicine, ok := medicines[item.MedicineID]
		if !ok || !medicine.IsActive {
			reasons = append(reasons, fmt.Sprintf("%s: medicine not available", item.MedicineName))
			continue
		}
		if medicine.IsExpired(now) {
			reasons = append(reasons, fmt.Sprintf("%s: medicine is expired", item.MedicineName))
			continue
		}
		if medicine.Quantity < item.Quantity {
			reasons = append(reasons, fmt.Sprintf("%s: insufficient stock (have %d, need %d)",
				item.MedicineName, medicine.Quantity, item.Quantity))
		}
	}

	return reasons
}

// Validate checks a pending prescription against current stock and moves it
// to validated, or to rejected with the aggregated failure reasons. Stock is
// not touched; dispensing does the actual debit later. A missing medicine is
// a rejection reason; any other lookup failure aborts without deciding.
func (s *PrescriptionService) Validate(ctx context.Context, id, validatorID, note string) (*repository.Prescription, error) {
	p, err := s.prescriptionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != repository.StatusPending {
		return nil, errors.Conflict("prescription is " + p.Status + ", expected pending")
	}

	now := time.Now()
	medicines := map[string]*invrepo.Medicine{}
	for _, item := range p.Items {
		medicine, err := s.medicineRepo.GetByID(ctx, item.MedicineID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		medicines[item.MedicineID] = medicine

		if medicine.IsExpiringSoon(now) {
			s.logger.Warn().
				Str("prescription_id", p.ID).
				Str("medicine_id", medicine.ID).
				Int("days_until_expiry", medicine.DaysUntilExpiry(now)).
				Msg("prescribed medicine expires soon")
		}
	}

	reasons := CheckItems(p.Items, medicines, now)
	if len(reasons) > 0 {
		reason := strings.Join(reasons, "; ")
		if err := s.prescriptionRepo.MarkRejected(ctx, id, validatorID, reason); err != nil {
			return nil, err
		}

		s.logger.Info().
			Str("prescription_id", id).
			Str("reason", reason).
			Msg("prescription rejected")
		s.publisher.PublishPrescriptionChanged(ctx, messaging.EventPrescriptionDecided, id, repository.StatusRejected, validatorID)

		return s.prescriptionRepo.GetByID(ctx, id)
	}

	if err := s.prescriptionRepo.MarkValidated(ctx, id, validatorID, note); err != nil {
		return nil, err
	}

	s.publisher.PublishPrescriptionChanged(ctx, messaging.EventPrescriptionDecided, id, repository.StatusValidated, validatorID)
	return s.prescriptionRepo.GetByID(ctx, id)
}

// DispenseResult is returned from a successful dispense
type DispenseResult struct {
	Prescription *repository.Prescription `json:"prescription"`
	Transactions []*invrepo.Transaction   `json:"transactions"`
}

// Dispense debits stock for every item of a validated prescription and
// appends one dispense ledger row per item. The status change and all
// debits commit or roll back together.
func (s *PrescriptionService) Dispense(ctx context.Context, id, dispenserID string) (*DispenseResult, error) {
	p, err := s.prescriptionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != repository.StatusValidated {
		return nil, errors.Conflict("prescription is " + p.Status + ", expected validated")
	}

	transactions := make([]*invrepo.Transaction, 0, len(p.Items))

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.prescriptionRepo.MarkDispensedTx(ctx, tx, id, dispenserID); err != nil {
			return err
		}

		for _, item := range p.Items {
			medicine, err := s.medicineRepo.GetByID(ctx, item.MedicineID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.Conflict(item.MedicineName + ": medicine not available")
				}
				return err
			}

			previous, current, err := s.medicineRepo.AdjustStockTx(ctx, tx, item.MedicineID, -item.Quantity)
			if err != nil {
				return err
			}

			record := &invrepo.Transaction{
				MedicineID:     item.MedicineID,
				Type:           invrepo.TxDispense,
				Quantity:       item.Quantity,
				PreviousStock:  previous,
				NewStock:       current,
				UnitPrice:      medicine.UnitPrice,
				TotalAmount:    medicine.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
				PerformedBy:    &dispenserID,
				PrescriptionID: &id,
			}
			if err := s.txRepo.CreateTx(ctx, tx, record); err != nil {
				return err
			}
			transactions = append(transactions, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", id).
		Int("items", len(p.Items)).
		Msg("prescription dispensed")
	s.publisher.PublishPrescriptionChanged(ctx, messaging.EventPrescriptionDispensed, id, repository.StatusDispensed, dispenserID)

	updated, err := s.prescriptionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DispenseResult{Prescription: updated, Transactions: transactions}, nil
}
