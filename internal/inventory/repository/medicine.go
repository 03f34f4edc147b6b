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
	"github.com/shopspring/decimal"
)

// Medicine represents a medicine in the inventory
type Medicine struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	GenericName      string          `db:"generic_name" json:"generic_name"`
	Brand            string          `db:"brand" json:"brand"`
	Category         string          `db:"category" json:"category"`
	Description      string          `db:"description" json:"description"`
	Manufacturer     string          `db:"manufacturer" json:"manufacturer"`
	BatchNumber      string          `db:"batch_number" json:"batch_number"`
	ExpiryDate       time.Time       `db:"expiry_date" json:"expiry_date"`
	Quantity         int             `db:"quantity" json:"quantity"`
	Unit             string          `db:"unit" json:"unit"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	ReorderThreshold int             `db:"reorder_threshold" json:"reorder_threshold"`
	Priority         string          `db:"priority" json:"priority"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Derived fields are computed at read time and never persisted, so they can
// not go stale against the stored quantity and expiry date.

// DaysUntilExpiry returns whole days from now until the expiry date.
// Negative for already-expired medicines.
func (m *Medicine) DaysUntilExpiry(now time.Time) int {
	return int(m.ExpiryDate.Sub(now).Hours() / 24)
}

// IsLowStock reports whether quantity is at or below the reorder threshold.
func (m *Medicine) IsLowStock() bool {
	return m.Quantity <= m.ReorderThreshold
}

// IsExpired reports whether the expiry date has passed.
func (m *Medicine) IsExpired(now time.Time) bool {
	return m.ExpiryDate.Before(now)
}

// IsExpiringSoon reports whether the medicine expires within 30 days but has
// not expired yet.
func (m *Medicine) IsExpiringSoon(now time.Time) bool {
	days := m.DaysUntilExpiry(now)
	return days > 0 && days <= 30
}

// InventoryValue returns unit price times quantity on hand.
func (m *Medicine) InventoryValue() decimal.Decimal {
	return m.UnitPrice.Mul(decimal.NewFromInt(int64(m.Quantity)))
}

// MedicineFilter narrows List results.
type MedicineFilter struct {
	Search       string
	Category     string
	Priority     string
	LowStock     bool
	ExpiringSoon bool
	Expired      bool
	Page         int
	PerPage      int
}

const medicineColumns = `id, name, generic_name, brand, category, description, manufacturer,
	       batch_number, expiry_date, quantity, unit, unit_price, reorder_threshold,
	       priority, is_active, created_at, updated_at`

// MedicineRepository handles medicine persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create creates a new medicine
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Priority == "" {
		m.Priority = "medium"
	}
	if m.Unit == "" {
		m.Unit = "unit"
	}
	m.IsActive = true

	query := `
		INSERT INTO medicines (
			id, name, generic_name, brand, category, description, manufacturer,
			batch_number, expiry_date, quantity, unit, unit_price, reorder_threshold,
			priority, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.GenericName, m.Brand, m.Category, m.Description, m.Manufacturer,
		m.BatchNumber, m.ExpiryDate, m.Quantity, m.Unit, m.UnitPrice, m.ReorderThreshold,
		m.Priority, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("medicine")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List lists medicines with filters and pagination
func (r *MedicineRepository) List(ctx context.Context, f MedicineFilter) ([]*Medicine, int64, error) {
	where := `WHERE is_active = TRUE`
	args := []interface{}{}
	n := 0

	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where += fmt.Sprintf(` AND (name ILIKE %[1]s OR generic_name ILIKE %[1]s OR brand ILIKE %[1]s OR category ILIKE %[1]s OR description ILIKE %[1]s)`, p)
	}
	if f.Category != "" {
		where += ` AND category = ` + arg(f.Category)
	}
	if f.Priority != "" {
		where += ` AND priority = ` + arg(f.Priority)
	}
	if f.LowStock {
		where += ` AND quantity <= reorder_threshold`
	}
	if f.Expired {
		where += ` AND expiry_date < NOW()`
	}
	if f.ExpiringSoon {
		where += ` AND expiry_date > NOW() AND expiry_date <= NOW() + INTERVAL '30 days'`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM medicines `+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.PerPage
	query := `SELECT ` + medicineColumns + ` FROM medicines ` + where +
		` ORDER BY name LIMIT ` + arg(f.PerPage) + ` OFFSET ` + arg(offset)

	var medicines []*Medicine
	if err := r.db.SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, 0, err
	}

	return medicines, total, nil
}

// Update updates a medicine
func (r *MedicineRepository) Update(ctx context.Context, m *Medicine) error {
	query := `
		UPDATE medicines SET
			name = $2, generic_name = $3, brand = $4, category = $5, description = $6,
			manufacturer = $7, batch_number = $8, expiry_date = $9, quantity = $10,
			unit = $11, unit_price = $12, reorder_threshold = $13, priority = $14,
			updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.GenericName, m.Brand, m.Category, m.Description,
		m.Manufacturer, m.BatchNumber, m.ExpiryDate, m.Quantity,
		m.Unit, m.UnitPrice, m.ReorderThreshold, m.Priority,
	)
	if err != nil {
		return database.MapPQError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}
	return nil
}

// Deactivate soft deletes a medicine by clearing its active flag
func (r *MedicineRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE medicines SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}
	return nil
}

// GetAllActive gets all active medicines
func (r *MedicineRepository) GetAllActive(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE is_active = TRUE ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// ListBelowThreshold gets all active medicines at or below their reorder threshold
func (r *MedicineRepository) ListBelowThreshold(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT ` + medicineColumns + ` FROM medicines
		WHERE is_active = TRUE AND quantity <= reorder_threshold ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Categories lists the distinct categories of active medicines
func (r *MedicineRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	query := `SELECT DISTINCT category FROM medicines WHERE is_active = TRUE AND category <> '' ORDER BY category`
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, err
	}
	return categories, nil
}

// AdjustStockTx changes the quantity of a medicine by delta inside the given
// transaction. The update is conditional: it only applies when the resulting
// quantity stays non-negative, so a concurrent dispense can never drive stock
// below zero. Returns the previous and new quantity.
func (r *MedicineRepository) AdjustStockTx(ctx context.Context, q sqlx.ExtContext, id string, delta int) (int, int, error) {
	var newQuantity int
	query := `
		UPDATE medicines
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND quantity + $2 >= 0
		RETURNING quantity
	`

	err := sqlx.GetContext(ctx, q, &newQuantity, query, id, delta)
	if err == sql.ErrNoRows {
		return 0, 0, errors.Conflict("insufficient stock or medicine not available")
	}
	if err != nil {
		return 0, 0, err
	}

	return newQuantity - delta, newQuantity, nil
}

// AdjustStock is the non-transactional variant of AdjustStockTx.
func (r *MedicineRepository) AdjustStock(ctx context.Context, id string, delta int) (int, int, error) {
	return r.AdjustStockTx(ctx, r.db.DB, id, delta)
}
