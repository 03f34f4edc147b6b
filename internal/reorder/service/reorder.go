package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/internal/events"
	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/reorder/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// minReorderQuantity is the floor for a generated request.
const minReorderQuantity = 50

// RequestedQuantity computes how much to reorder for a given threshold:
// three times the threshold, but never below the floor.
func RequestedQuantity(threshold int) int {
	q := threshold * 3
	if q < minReorderQuantity {
		return minReorderQuantity
	}
	return q
}

// ReorderService handles the restock workflow
type ReorderService struct {
	db           *database.DB
	reorderRepo  *repository.ReorderRepository
	medicineRepo *invrepo.MedicineRepository
	txRepo       *invrepo.TransactionRepository
	publisher    *events.Publisher
	logger       *logger.Logger
}

// NewReorderService creates a new reorder service
func NewReorderService(
	db *database.DB,
	reorderRepo *repository.ReorderRepository,
	medicineRepo *invrepo.MedicineRepository,
	txRepo *invrepo.TransactionRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *ReorderService {
	return &ReorderService{
		db:           db,
		reorderRepo:  reorderRepo,
		medicineRepo: medicineRepo,
		txRepo:       txRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// Sweep creates a pending request for every active medicine at or below its
// threshold that has no open request yet. For medicines that already have
// one, only the stock snapshot is refreshed. Running the sweep twice without
// stock changes creates nothing new, so overlapping runs are harmless.
func (s *ReorderService) Sweep(ctx context.Context) (int, error) {
	medicines, err := s.medicineRepo.ListBelowThreshold(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, m := range medicines {
		req := &repository.ReorderRequest{
			MedicineID:        m.ID,
			MedicineName:      m.Name,
			CurrentStock:      m.Quantity,
			ReorderThreshold:  m.ReorderThreshold,
			RequestedQuantity: RequestedQuantity(m.ReorderThreshold),
		}

		ok, err := s.reorderRepo.CreateIfNoneOpen(ctx, req)
		if err != nil {
			s.logger.Error().Err(err).Str("medicine_id", m.ID).Msg("failed to create reorder request")
			continue
		}

		if !ok {
			if err := s.reorderRepo.RefreshCurrentStock(ctx, m.ID, m.Quantity); err != nil {
				s.logger.Warn().Err(err).Str("medicine_id", m.ID).Msg("failed to refresh stock snapshot")
			}
			continue
		}

		created++
		s.logger.Info().
			Str("medicine_id", m.ID).
			Str("medicine_name", m.Name).
			Int("current_stock", m.Quantity).
			Int("requested_quantity", req.RequestedQuantity).
			Msg("reorder request created")
		s.publisher.PublishReorderChanged(ctx, messaging.EventReorderCreated, req.ID, m.ID, req.Status, req.RequestedQuantity)
	}

	return created, nil
}

// CreateManual creates a reorder request outside the sweep, attributed to
// the requesting user. Quantity falls back to the computed default.
func (s *ReorderService) CreateManual(ctx context.Context, medicineID string, quantity int, requestedBy string) (*repository.ReorderRequest, error) {
	m, err := s.medicineRepo.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		quantity = RequestedQuantity(m.ReorderThreshold)
	}

	req := &repository.ReorderRequest{
		MedicineID:        m.ID,
		MedicineName:      m.Name,
		CurrentStock:      m.Quantity,
		ReorderThreshold:  m.ReorderThreshold,
		RequestedQuantity: quantity,
	}
	if requestedBy != "" {
		req.RequestedBy = &requestedBy
	}

	ok, err := s.reorderRepo.CreateIfNoneOpen(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Conflict("an open reorder request already exists for " + m.Name)
	}

	s.publisher.PublishReorderChanged(ctx, messaging.EventReorderCreated, req.ID, m.ID, req.Status, req.RequestedQuantity)
	return req, nil
}

// Get loads a reorder request
func (s *ReorderService) Get(ctx context.Context, id string) (*repository.ReorderRequest, error) {
	return s.reorderRepo.GetByID(ctx, id)
}

// List lists reorder requests
func (s *ReorderService) List(ctx context.Context, f repository.ReorderFilter) ([]*repository.ReorderRequest, int64, error) {
	return s.reorderRepo.List(ctx, f)
}

// Approve moves a pending request to approved
func (s *ReorderService) Approve(ctx context.Context, id, approverID string) (*repository.ReorderRequest, error) {
	if err := s.reorderRepo.Approve(ctx, id, approverID); err != nil {
		return nil, err
	}

	req, err := s.reorderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishReorderChanged(ctx, messaging.EventReorderUpdated, req.ID, req.MedicineID, req.Status, req.RequestedQuantity)
	return req, nil
}

// Order moves an approved request to ordered
func (s *ReorderService) Order(ctx context.Context, id string) (*repository.ReorderRequest, error) {
	if err := s.reorderRepo.MarkOrdered(ctx, id); err != nil {
		return nil, err
	}

	req, err := s.reorderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishReorderChanged(ctx, messaging.EventReorderUpdated, req.ID, req.MedicineID, req.Status, req.RequestedQuantity)
	return req, nil
}

// Receive closes an ordered request, credits the stock, and appends a
// purchase ledger row. All three commit or roll back together.
func (s *ReorderService) Receive(ctx context.Context, id string, receivedQuantity *int, actorID string) (*repository.ReorderRequest, error) {
	var req *repository.ReorderRequest

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		updated, err := s.reorderRepo.ReceiveTx(ctx, tx, id, receivedQuantity)
		if err != nil {
			return err
		}
		req = updated

		quantity := req.RequestedQuantity
		if req.ReceivedQuantity != nil {
			quantity = *req.ReceivedQuantity
		}

		previous, current, err := s.medicineRepo.AdjustStockTx(ctx, tx, req.MedicineID, quantity)
		if err != nil {
			return err
		}

		medicine, err := s.medicineRepo.GetByID(ctx, req.MedicineID)
		if err != nil {
			return err
		}

		record := &invrepo.Transaction{
			MedicineID:    req.MedicineID,
			Type:          invrepo.TxPurchase,
			Quantity:      quantity,
			PreviousStock: previous,
			NewStock:      current,
			UnitPrice:     medicine.UnitPrice,
			TotalAmount:   medicine.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		}
		if actorID != "" {
			record.PerformedBy = &actorID
		}

		return s.txRepo.CreateTx(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.ID).
		Str("medicine_id", req.MedicineID).
		Int("received_quantity", *req.ReceivedQuantity).
		Msg("reorder received")
	s.publisher.PublishReorderChanged(ctx, messaging.EventReorderReceived, req.ID, req.MedicineID, req.Status, *req.ReceivedQuantity)

	return req, nil
}

// Cancel closes an open request
func (s *ReorderService) Cancel(ctx context.Context, id string) (*repository.ReorderRequest, error) {
	if err := s.reorderRepo.Cancel(ctx, id); err != nil {
		return nil, err
	}

	return s.reorderRepo.GetByID(ctx, id)
}
