package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of one stock movement. Rows are only
// ever inserted; the log is the sole input to demand analytics.
type Transaction struct {
	ID             string          `db:"id" json:"id"`
	MedicineID     string          `db:"medicine_id" json:"medicine_id"`
	Type           string          `db:"type" json:"type"`
	Quantity       int             `db:"quantity" json:"quantity"`
	PreviousStock  int             `db:"previous_stock" json:"previous_stock"`
	NewStock       int             `db:"new_stock" json:"new_stock"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	PerformedBy    *string         `db:"performed_by" json:"performed_by,omitempty"`
	PrescriptionID *string         `db:"prescription_id" json:"prescription_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Transaction types
const (
	TxPurchase   = "purchase"
	TxSale       = "sale"
	TxDispense   = "dispense"
	TxAdjustment = "adjustment"
	TxExpired    = "expired"
	TxReturn     = "return"
)

// TransactionFilter narrows List results.
type TransactionFilter struct {
	MedicineID string
	Type       string
	Since      time.Time
	Page       int
	PerPage    int
}

// DailyDemand is the quantity sold or dispensed on one day.
type DailyDemand struct {
	Day      time.Time `db:"day" json:"date"`
	Quantity int       `db:"quantity" json:"quantity"`
}

// TopSeller is one row of the top-sellers aggregate.
type TopSeller struct {
	MedicineID   string          `db:"medicine_id" json:"medicine_id"`
	MedicineName string          `db:"medicine_name" json:"medicine_name"`
	QuantitySold int             `db:"quantity_sold" json:"quantity_sold"`
	Revenue      decimal.Decimal `db:"revenue" json:"revenue"`
}

// MedicineDemand is the total outflow of one medicine over a window.
type MedicineDemand struct {
	MedicineID string `db:"medicine_id" json:"medicine_id"`
	Quantity   int    `db:"quantity" json:"quantity"`
}

// SalesSummary aggregates sales over a window.
type SalesSummary struct {
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	ItemCount   int             `db:"item_count" json:"item_count"`
}

const transactionColumns = `id, medicine_id, type, quantity, previous_stock, new_stock,
	       unit_price, total_amount, performed_by, prescription_id, created_at`

// TransactionRepository handles the append-only transaction log
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx appends a transaction record using the given executor, so callers
// can bundle the ledger write with the stock update it records.
func (r *TransactionRepository) CreateTx(ctx context.Context, q sqlx.ExtContext, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO transactions (
			id, medicine_id, type, quantity, previous_stock, new_stock,
			unit_price, total_amount, performed_by, prescription_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	row := q.QueryRowxContext(ctx, query,
		t.ID, t.MedicineID, t.Type, t.Quantity, t.PreviousStock, t.NewStock,
		t.UnitPrice, t.TotalAmount, t.PerformedBy, t.PrescriptionID,
	)
	return row.Scan(&t.CreatedAt)
}

// Create appends a transaction record
func (r *TransactionRepository) Create(ctx context.Context, t *Transaction) error {
	return r.CreateTx(ctx, r.db.DB, t)
}

// List lists transactions with filters, newest first
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*Transaction, int64, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0

	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.MedicineID != "" {
		where += ` AND medicine_id = ` + arg(f.MedicineID)
	}
	if f.Type != "" {
		where += ` AND type = ` + arg(f.Type)
	}
	if !f.Since.IsZero() {
		where += ` AND created_at >= ` + arg(f.Since)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions `+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.PerPage
	query := `SELECT ` + transactionColumns + ` FROM transactions ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(f.PerPage) + ` OFFSET ` + arg(offset)

	var txs []*Transaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

// DemandByDay buckets sale and dispense quantities per day for one medicine
// since the given time.
func (r *TransactionRepository) DemandByDay(ctx context.Context, medicineID string, since time.Time) ([]DailyDemand, error) {
	var buckets []DailyDemand
	query := `
		SELECT date_trunc('day', created_at) AS day, COALESCE(SUM(quantity), 0) AS quantity
		FROM transactions
		WHERE medicine_id = $1 AND type IN ('sale', 'dispense') AND created_at >= $2
		GROUP BY day
		ORDER BY day
	`
	if err := r.db.SelectContext(ctx, &buckets, query, medicineID, since); err != nil {
		return nil, err
	}
	return buckets, nil
}

// DemandPerMedicine sums sale and dispense quantities per medicine since the
// given time. Used by reorder recommendations to project every medicine at once.
func (r *TransactionRepository) DemandPerMedicine(ctx context.Context, since time.Time) ([]MedicineDemand, error) {
	var demands []MedicineDemand
	query := `
		SELECT medicine_id, COALESCE(SUM(quantity), 0) AS quantity
		FROM transactions
		WHERE type IN ('sale', 'dispense') AND created_at >= $1
		GROUP BY medicine_id
	`
	if err := r.db.SelectContext(ctx, &demands, query, since); err != nil {
		return nil, err
	}
	return demands, nil
}

// SalesSummary aggregates sale and dispense totals since the given time.
func (r *TransactionRepository) SalesSummary(ctx context.Context, since time.Time) (*SalesSummary, error) {
	var s SalesSummary
	query := `
		SELECT COALESCE(SUM(total_amount), 0) AS total_amount, COALESCE(SUM(quantity), 0) AS item_count
		FROM transactions
		WHERE type IN ('sale', 'dispense') AND created_at >= $1
	`
	if err := r.db.GetContext(ctx, &s, query, since); err != nil {
		return nil, err
	}
	return &s, nil
}

// TopSellers returns the medicines with the highest quantity sold since the
// given time.
func (r *TransactionRepository) TopSellers(ctx context.Context, since time.Time, limit int) ([]TopSeller, error) {
	var top []TopSeller
	query := `
		SELECT t.medicine_id, m.name AS medicine_name,
		       COALESCE(SUM(t.quantity), 0) AS quantity_sold,
		       COALESCE(SUM(t.total_amount), 0) AS revenue
		FROM transactions t
		JOIN medicines m ON m.id = t.medicine_id
		WHERE t.type IN ('sale', 'dispense') AND t.created_at >= $1
		GROUP BY t.medicine_id, m.name
		ORDER BY quantity_sold DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &top, query, since, limit); err != nil {
		return nil, err
	}
	return top, nil
}
