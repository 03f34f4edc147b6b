package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/prescription/repository"
	pkgerrors "github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func medicine(id string, quantity int, expiry time.Time, active bool) *invrepo.Medicine {
	return &invrepo.Medicine{
		ID:         id,
		Name:       "Medicine " + id,
		Quantity:   quantity,
		ExpiryDate: expiry,
		IsActive:   active,
	}
}

func item(medicineID, name string, quantity int) *repository.PrescriptionItem {
	return &repository.PrescriptionItem{
		MedicineID:   medicineID,
		MedicineName: name,
		Quantity:     quantity,
	}
}

func TestCheckItems(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(1, 0, 0)
	past := now.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		items     []*repository.PrescriptionItem
		medicines map[string]*invrepo.Medicine
		reasons   int
		contains  string
	}{
		{
			name:  "all items available",
			items: []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 100, future, true),
			},
			reasons: 0,
		},
		{
			name:      "unknown medicine",
			items:     []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{},
			reasons:   1,
			contains:  "not available",
		},
		{
			name:  "inactive medicine",
			items: []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 100, future, false),
			},
			reasons:  1,
			contains: "not available",
		},
		{
			name:  "expired medicine",
			items: []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 100, past, true),
			},
			reasons:  1,
			contains: "expired",
		},
		{
			name:  "insufficient stock",
			items: []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 5, future, true),
			},
			reasons:  1,
			contains: "insufficient stock (have 5, need 10)",
		},
		{
			name: "aggregates every failing item",
			items: []*repository.PrescriptionItem{
				item("m1", "Paracetamol", 10),
				item("m2", "Ibuprofen", 3),
				item("m3", "Amoxicillin", 2),
			},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 5, future, true),
				"m2": medicine("m2", 100, past, true),
				"m3": medicine("m3", 100, future, true),
			},
			reasons: 2,
		},
		{
			name:  "exact stock is enough",
			items: []*repository.PrescriptionItem{item("m1", "Paracetamol", 10)},
			medicines: map[string]*invrepo.Medicine{
				"m1": medicine("m1", 10, future, true),
			},
			reasons: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := CheckItems(tt.items, tt.medicines, now)
			assert.Len(t, reasons, tt.reasons)
			if tt.contains != "" {
				assert.Contains(t, reasons[0], tt.contains)
			}
		})
	}
}

func TestCheckItemsExpiringSoonStillPasses(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	soon := now.AddDate(0, 0, 10)

	m := medicine("m1", 100, soon, true)
	assert.True(t, m.IsExpiringSoon(now))

	reasons := CheckItems([]*repository.PrescriptionItem{item("m1", "Paracetamol", 5)}, map[string]*invrepo.Medicine{"m1": m}, now)
	assert.Empty(t, reasons)
}

func newTestService(t *testing.T) (*PrescriptionService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	svc := NewPrescriptionService(
		mockDB.DB,
		repository.NewPrescriptionRepository(mockDB.DB),
		invrepo.NewMedicineRepository(mockDB.DB),
		invrepo.NewTransactionRepository(mockDB.DB),
		nil,
		logger.New("test", "development"),
	)
	return svc, mockDB
}

func prescriptionRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "patient_name", "notes"}).
		AddRow(id, status, "Jane Roe", "")
}

func itemRows(prescriptionID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "prescription_id", "medicine_id", "medicine_name", "quantity"}).
		AddRow("item-1", prescriptionID, "med-1", "Paracetamol", 3)
}

func medicineRows(quantity int) *sqlmock.Rows {
	expiry := time.Now().AddDate(1, 0, 0)
	return sqlmock.NewRows([]string{"id", "name", "quantity", "unit_price", "reorder_threshold", "expiry_date", "is_active"}).
		AddRow("med-1", "Paracetamol", quantity, "2.50", 10, expiry, true)
}

func TestValidateAbortsOnLookupFailure(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusPending))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))
	mockDB.ExpectQuery("SELECT").
		WithArgs("med-1").
		WillReturnError(stderrors.New("connection refused"))

	p, err := svc.Validate(context.Background(), "rx-1", "user-1", "")
	require.Error(t, err)
	assert.Nil(t, p)

	// no rejection was written
	mockDB.ExpectationsWereMet(t)
}

func TestValidateRejectsMissingMedicine(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusPending))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))
	mockDB.ExpectQuery("SELECT").
		WithArgs("med-1").
		WillReturnError(sql.ErrNoRows)

	mockDB.ExpectExec("UPDATE prescriptions").
		WithArgs("rx-1", repository.StatusRejected, "user-1", "Paracetamol: medicine not available", repository.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusRejected))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))

	p, err := svc.Validate(context.Background(), "rx-1", "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, p.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestValidateAttachesNote(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusPending))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))
	mockDB.ExpectQuery("SELECT").
		WithArgs("med-1").
		WillReturnRows(medicineRows(10))

	mockDB.ExpectExec("UPDATE prescriptions").
		WithArgs("rx-1", repository.StatusValidated, "user-1", repository.StatusPending, "substituted generic brand").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusValidated))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))

	p, err := svc.Validate(context.Background(), "rx-1", "user-1", "substituted generic brand")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusValidated, p.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestDispense(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusValidated))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE prescriptions").
		WithArgs("rx-1", repository.StatusDispensed, "user-2", repository.StatusValidated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT").
		WithArgs("med-1").
		WillReturnRows(medicineRows(10))
	mockDB.ExpectQuery("UPDATE medicines").
		WithArgs("med-1", -3).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(7))
	mockDB.ExpectQuery("INSERT INTO transactions").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectCommit()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusDispensed))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))

	result, err := svc.Dispense(context.Background(), "rx-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusDispensed, result.Prescription.Status)

	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, invrepo.TxDispense, tx.Type)
	assert.Equal(t, 3, tx.Quantity)
	assert.Equal(t, 10, tx.PreviousStock)
	assert.Equal(t, 7, tx.NewStock)
	assert.Equal(t, "rx-1", *tx.PrescriptionID)

	mockDB.ExpectationsWereMet(t)
}

func TestDispenseRequiresValidated(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM prescriptions").
		WithArgs("rx-1").
		WillReturnRows(prescriptionRow("rx-1", repository.StatusPending))
	mockDB.ExpectQuery("SELECT * FROM prescription_items").
		WithArgs("rx-1").
		WillReturnRows(itemRows("rx-1"))

	_, err := svc.Dispense(context.Background(), "rx-1", "user-2")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	// nothing was debited
	mockDB.ExpectationsWereMet(t)
}
