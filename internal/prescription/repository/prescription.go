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

// Prescription statuses
const (
	StatusPending   = "pending"
	StatusValidated = "validated"
	StatusDispensed = "dispensed"
	StatusRejected  = "rejected"
	StatusExpired   = "expired"
)

// Prescription represents a doctor's prescription
type Prescription struct {
	ID              string     `db:"id" json:"id"`
	PatientName     string     `db:"patient_name" json:"patient_name"`
	PatientContact  string     `db:"patient_contact" json:"patient_contact"`
	DoctorName      string     `db:"doctor_name" json:"doctor_name"`
	DoctorLicense   string     `db:"doctor_license" json:"doctor_license"`
	Status          string     `db:"status" json:"status"`
	Notes           string     `db:"notes" json:"notes"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ValidatedBy     *string    `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt     *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	DispensedBy     *string    `db:"dispensed_by" json:"dispensed_by,omitempty"`
	DispensedAt     *time.Time `db:"dispensed_at" json:"dispensed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Items []*PrescriptionItem `db:"-" json:"items"`
}

// PrescriptionItem is one medicine line on a prescription
type PrescriptionItem struct {
	ID             string `db:"id" json:"id"`
	PrescriptionID string `db:"prescription_id" json:"prescription_id"`
	MedicineID     string `db:"medicine_id" json:"medicine_id"`
	MedicineName   string `db:"medicine_name" json:"medicine_name"`
	Quantity       int    `db:"quantity" json:"quantity"`
	Dosage         string `db:"dosage" json:"dosage"`
	Duration       string `db:"duration" json:"duration"`
}

// PrescriptionFilter narrows List results.
type PrescriptionFilter struct {
	Status  string
	Patient string
	Page    int
	PerPage int
}

// PrescriptionRepository handles prescription persistence
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create inserts a prescription and its items in one transaction
func (r *PrescriptionRepository) Create(ctx context.Context, p *Prescription) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO prescriptions (id, patient_name, patient_contact, doctor_name, doctor_license, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`

		err := tx.QueryRowxContext(ctx, query,
			p.ID, p.PatientName, p.PatientContact, p.DoctorName, p.DoctorLicense, p.Status, p.Notes,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return database.MapPQError(err)
		}

		itemQuery := `
			INSERT INTO prescription_items (id, prescription_id, medicine_id, medicine_name, quantity, dosage, duration)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`

		for _, item := range p.Items {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			item.PrescriptionID = p.ID

			if _, err := tx.ExecContext(ctx, itemQuery,
				item.ID, item.PrescriptionID, item.MedicineID, item.MedicineName,
				item.Quantity, item.Dosage, item.Duration,
			); err != nil {
				return database.MapPQError(err)
			}
		}

		return nil
	})
}

// GetByID loads a prescription with its items
func (r *PrescriptionRepository) GetByID(ctx context.Context, id string) (*Prescription, error) {
	var p Prescription
	query := `SELECT * FROM prescriptions WHERE id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("prescription")
		}
		return nil, errors.Wrap(err, "DATABASE_ERROR", "failed to get prescription", 500)
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items

	return &p, nil
}

func (r *PrescriptionRepository) itemsFor(ctx context.Context, prescriptionID string) ([]*PrescriptionItem, error) {
	items := []*PrescriptionItem{}
	query := `SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`

	if err := r.db.SelectContext(ctx, &items, query, prescriptionID); err != nil {
		return nil, errors.Wrap(err, "DATABASE_ERROR", "failed to load prescription items", 500)
	}

	return items, nil
}

// List lists prescriptions with their items, newest first
func (r *PrescriptionRepository) List(ctx context.Context, f PrescriptionFilter) ([]*Prescription, int64, error) {
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
	if f.Patient != "" {
		where += ` AND patient_name ILIKE ` + arg("%"+f.Patient+"%")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM prescriptions `+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "DATABASE_ERROR", "failed to count prescriptions", 500)
	}

	offset := (f.Page - 1) * f.PerPage
	query := `SELECT * FROM prescriptions ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(f.PerPage) + ` OFFSET ` + arg(offset)

	prescriptions := []*Prescription{}
	if err := r.db.SelectContext(ctx, &prescriptions, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "DATABASE_ERROR", "failed to list prescriptions", 500)
	}

	for _, p := range prescriptions {
		items, err := r.itemsFor(ctx, p.ID)
		if err != nil {
			return nil, 0, err
		}
		p.Items = items
	}

	return prescriptions, total, nil
}

// MarkValidated moves a pending prescription to validated, keeping the
// existing notes when no validation note is given. The conditional update
// fails on any other current status, so out-of-order transitions surface as
// a conflict instead of silently overwriting state.
func (r *PrescriptionRepository) MarkValidated(ctx context.Context, id, validatorID, note string) error {
	query := `
		UPDATE prescriptions
		SET status = $2, validated_by = $3, validated_at = NOW(),
		    notes = COALESCE(NULLIF($5, ''), notes), updated_at = NOW()
		WHERE id = $1 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, id, StatusValidated, validatorID, StatusPending, note)
	if err != nil {
		return database.MapPQError(err)
	}

	return r.checkTransition(ctx, result, id, StatusPending)
}

// MarkRejected moves a pending prescription to rejected with a reason
func (r *PrescriptionRepository) MarkRejected(ctx context.Context, id, validatorID, reason string) error {
	query := `
		UPDATE prescriptions
		SET status = $2, validated_by = $3, validated_at = NOW(), rejection_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, id, StatusRejected, validatorID, reason, StatusPending)
	if err != nil {
		return database.MapPQError(err)
	}

	return r.checkTransition(ctx, result, id, StatusPending)
}

// MarkDispensedTx moves a validated prescription to dispensed inside the
// caller's transaction, alongside the stock debits.
func (r *PrescriptionRepository) MarkDispensedTx(ctx context.Context, q sqlx.ExtContext, id, dispenserID string) error {
	query := `
		UPDATE prescriptions
		SET status = $2, dispensed_by = $3, dispensed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`

	result, err := q.ExecContext(ctx, query, id, StatusDispensed, dispenserID, StatusValidated)
	if err != nil {
		return database.MapPQError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check dispense transition", 500)
	}
	if rows == 0 {
		return errors.Conflict("prescription must be validated before dispensing")
	}

	return nil
}

// checkTransition distinguishes a missing row from a wrong-state row after
// a conditional update matched nothing.
func (r *PrescriptionRepository) checkTransition(ctx context.Context, result sql.Result, id, requiredStatus string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check status transition", 500)
	}
	if rows > 0 {
		return nil
	}

	var status string
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM prescriptions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("prescription")
		}
		return errors.Wrap(err, "DATABASE_ERROR", "failed to check status transition", 500)
	}

	return errors.Conflict("prescription is " + status + ", expected " + requiredStatus)
}
