package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/internal/events"
	"github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// InventoryService handles medicine stock business logic
type InventoryService struct {
	db           *database.DB
	medicineRepo *repository.MedicineRepository
	txRepo       *repository.TransactionRepository
	publisher    *events.Publisher
	logger       *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db *database.DB,
	medicineRepo *repository.MedicineRepository,
	txRepo *repository.TransactionRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		db:           db,
		medicineRepo: medicineRepo,
		txRepo:       txRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// MedicineView is a medicine with its derived stock and expiry flags.
type MedicineView struct {
	*repository.Medicine
	DaysUntilExpiry int  `json:"days_until_expiry"`
	IsLowStock      bool `json:"is_low_stock"`
	IsExpired       bool `json:"is_expired"`
	IsExpiringSoon  bool `json:"is_expiring_soon"`
}

// NewMedicineView computes the derived flags for a medicine at the given time.
func NewMedicineView(m *repository.Medicine, now time.Time) *MedicineView {
	return &MedicineView{
		Medicine:        m,
		DaysUntilExpiry: m.DaysUntilExpiry(now),
		IsLowStock:      m.IsLowStock(),
		IsExpired:       m.IsExpired(now),
		IsExpiringSoon:  m.IsExpiringSoon(now),
	}
}

// CreateMedicine creates a new medicine
func (s *InventoryService) CreateMedicine(ctx context.Context, m *repository.Medicine) (*MedicineView, error) {
	if err := s.medicineRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.publisher.PublishMedicineChanged(ctx, messaging.EventMedicineCreated, m.ID, m.Name)
	return NewMedicineView(m, time.Now()), nil
}

// GetMedicine gets a medicine with derived flags
func (s *InventoryService) GetMedicine(ctx context.Context, id string) (*MedicineView, error) {
	m, err := s.medicineRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewMedicineView(m, time.Now()), nil
}

// ListMedicines lists medicines with derived flags
func (s *InventoryService) ListMedicines(ctx context.Context, f repository.MedicineFilter) ([]*MedicineView, int64, error) {
	medicines, total, err := s.medicineRepo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]*MedicineView, len(medicines))
	for i, m := range medicines {
		views[i] = NewMedicineView(m, now)
	}

	return views, total, nil
}

// UpdateMedicine updates a medicine
func (s *InventoryService) UpdateMedicine(ctx context.Context, m *repository.Medicine) (*MedicineView, error) {
	if err := s.medicineRepo.Update(ctx, m); err != nil {
		return nil, err
	}

	updated, err := s.medicineRepo.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishMedicineChanged(ctx, messaging.EventMedicineUpdated, updated.ID, updated.Name)
	return NewMedicineView(updated, time.Now()), nil
}

// DeleteMedicine soft deletes a medicine
func (s *InventoryService) DeleteMedicine(ctx context.Context, id string) error {
	if err := s.medicineRepo.Deactivate(ctx, id); err != nil {
		return err
	}

	s.publisher.PublishMedicineChanged(ctx, messaging.EventMedicineDeleted, id, "")
	return nil
}

// AdjustStock changes a medicine's quantity and appends the matching ledger
// row in one database transaction. A positive delta restocks, a negative
// delta removes stock; the conditional update keeps quantity non-negative.
func (s *InventoryService) AdjustStock(ctx context.Context, id string, delta int, txType, reason, actorID string) (*repository.Transaction, error) {
	if delta == 0 {
		return nil, errors.BadRequest("adjustment must not be zero")
	}

	medicine, err := s.medicineRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	quantity := delta
	if quantity < 0 {
		quantity = -quantity
	}

	record := &repository.Transaction{
		MedicineID:  id,
		Type:        txType,
		Quantity:    quantity,
		UnitPrice:   medicine.UnitPrice,
		TotalAmount: medicine.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
	if actorID != "" {
		record.PerformedBy = &actorID
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		previous, current, err := s.medicineRepo.AdjustStockTx(ctx, tx, id, delta)
		if err != nil {
			return err
		}
		record.PreviousStock = previous
		record.NewStock = current
		return s.txRepo.CreateTx(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockAdjusted(ctx, id, txType, delta, record.NewStock, actorID, reason)
	return record, nil
}

// ListTransactions lists transaction log entries
func (s *InventoryService) ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]*repository.Transaction, int64, error) {
	return s.txRepo.List(ctx, f)
}
