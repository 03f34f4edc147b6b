package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
)

// Reorder request statuses
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusOrdered   = "ordered"
	StatusReceived  = "received"
	StatusCancelled = "cancelled"
)

// ReorderRequest represents a restock request for one medicine
type ReorderRequest struct {
	ID                string     `db:"id" json:"id"`
	MedicineID        string     `db:"medicine_id" json:"medicine_id"`
	MedicineName      string     `db:"medicine_name" json:"medicine_name"`
	CurrentStock      int        `db:"current_stock" json:"current_stock"`
	ReorderThreshold  int        `db:"reorder_threshold" json:"reorder_threshold"`
	RequestedQuantity int        `db:"requested_quantity" json:"requested_quantity"`
	Status            string     `db:"status" json:"status"`
	RequestedBy       *string    `db:"requested_by" json:"requested_by,omitempty"`
	ApprovedBy        *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	OrderedAt         *time.Time `db:"ordered_at" json:"ordered_at,omitempty"`
	ReceivedAt        *time.Time `db:"received_at" json:"received_at,omitempty"`
	ReceivedQuantity  *int       `db:"received_quantity" json:"received_quantity,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ReorderFilter narrows List results.
type ReorderFilter struct {
	Status     string
	MedicineID string
	Page       int
	PerPage    int
}

// ReorderRepository handles reorder request persistence
type ReorderRepository struct {
	db *database.DB
}

// NewReorderRepository creates a new reorder repository
func NewReorderRepository(db *database.DB) *ReorderRepository {
	return &ReorderRepository{db: db}
}

// CreateIfNoneOpen inserts a pending request unless the medicine already has
// an open one. The partial unique index arbitrates concurrent sweeps, so no
// pre-insert existence check is needed. Returns false when a request was
// already open.
func (r *ReorderRepository) CreateIfNoneOpen(ctx context.Context, req *ReorderRequest) (bool, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = StatusPending

	query := `
		INSERT INTO reorder_requests
			(id, medicine_id, medicine_name, current_stock, reorder_threshold, requested_quantity, status, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (medicine_id) WHERE status IN ('pending', 'approved') DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.MedicineID, req.MedicineName, req.CurrentStock,
		req.ReorderThreshold, req.RequestedQuantity, req.Status, req.RequestedBy,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, database.MapPQError(err)
	}

	return true, nil
}

// RefreshCurrentStock updates the stock snapshot on a medicine's open request
func (r *ReorderRepository) RefreshCurrentStock(ctx context.Context, medicineID string, stock int) error {
	query := `
		UPDATE reorder_requests
		SET current_stock = $2, updated_at = NOW()
		WHERE medicine_id = $1 AND status IN ('pending', 'approved') AND current_stock <> $2`

	if _, err := r.db.ExecContext(ctx, query, medicineID, stock); err != nil {
		return errors.Wrap(err, "DATABASE_ERROR", "failed to refresh stock snapshot", 500)
	}

	return nil
}

// GetByID loads a reorder request
func (r *ReorderRepository) GetByID(ctx context.Context, id string) (*ReorderRequest, error) {
	var req ReorderRequest
	query := `SELECT * FROM reorder_requests WHERE id = $1`

	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("reorder request")
		}
		return nil, errors.Wrap(err, "DATABASE_ERROR", "failed to get reorder request", 500)
	}

	return &req, nil
}

// List lists reorder requests, newest first
func (r *ReorderRepository) List(ctx context.Context, f ReorderFilter) ([]*ReorderRequest, int64, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0

	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.Status != "" {
		where += ` AND status = ` + arg(f.Status)
	}
	if f.MedicineID != "" {
		where += ` AND medicine_id = ` + arg(f.MedicineID)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reorder_requests `+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "DATABASE_ERROR", "failed to count reorder requests", 500)
	}

	offset := (f.Page - 1) * f.PerPage
	query := `SELECT * FROM reorder_requests ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(f.PerPage) + ` OFFSET ` + arg(offset)

	requests := []*ReorderRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "DATABASE_ERROR", "failed to list reorder requests", 500)
	}

	return requests, total, nil
}

// Approve moves a pending request to approved
func (r *ReorderRepository) Approve(ctx context.Context, id, approverID string) error {
	query := `
		UPDATE reorder_requests
		SET status = $2, approved_by = $3, approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, id, StatusApproved, approverID, StatusPending)
	if err != nil {
		return database.MapPQError(err)
	}

	return r.checkTransition(ctx, result, id, StatusPending)
}

// MarkOrdered moves an approved request to ordered
func (r *ReorderRepository) MarkOrdered(ctx context.Context, id string) error {
	query := `
		UPDATE reorder_requests
		SET status = $2, ordered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, StatusOrdered, StatusApproved)
	if err != nil {
		return database.MapPQError(err)
	}

	return r.checkTransition(ctx, result, id, StatusApproved)
}

// ReceiveTx moves an ordered request to received inside the caller's
// transaction and returns the updated row. A nil receivedQuantity defaults
// to the requested quantity.
func (r *ReorderRepository) ReceiveTx(ctx context.Context, q sqlx.ExtContext, id string, receivedQuantity *int) (*ReorderRequest, error) {
	query := `
		UPDATE reorder_requests
		SET status = $2, received_at = NOW(),
		    received_quantity = COALESCE($3, requested_quantity),
		    updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING *`

	var req ReorderRequest
	if err := sqlx.GetContext(ctx, q, &req, query, id, StatusReceived, receivedQuantity, StatusOrdered); err != nil {
		if err == sql.ErrNoRows {
			return nil, r.transitionConflict(ctx, id, StatusOrdered)
		}
		return nil, database.MapPQError(err)
	}

	return &req, nil
}

// Cancel closes an open request without ordering
func (r *ReorderRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE reorder_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)`

	result, err := r.db.ExecContext(ctx, query, id, StatusCancelled, StatusPending, StatusApproved)
	if err != nil {
		return database.MapPQError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check status transition", 500)
	}
	if rows == 0 {
		return r.transitionConflict(ctx, id, "pending or approved")
	}

	return nil
}

func (r *ReorderRepository) checkTransition(ctx context.Context, result sql.Result, id, requiredStatus string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check status transition", 500)
	}
	if rows > 0 {
		return nil
	}

	return r.transitionConflict(ctx, id, requiredStatus)
}

func (r *ReorderRepository) transitionConflict(ctx context.Context, id, requiredStatus string) error {
	var status string
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM reorder_requests WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("reorder request")
		}
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check status transition", 500)
	}

	return errors.Conflict("reorder request is " + status + ", expected " + requiredStatus)
}
