package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/reorder/repository"
	pkgerrors "github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestedQuantity(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		want      int
	}{
		{"small threshold hits the floor", 10, 50},
		{"zero threshold hits the floor", 0, 50},
		{"threshold just below the floor", 16, 50},
		{"threshold at the boundary", 17, 51},
		{"large threshold scales", 100, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestedQuantity(tt.threshold))
		})
	}
}

func newTestService(t *testing.T) (*ReorderService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	svc := NewReorderService(
		mockDB.DB,
		repository.NewReorderRepository(mockDB.DB),
		invrepo.NewMedicineRepository(mockDB.DB),
		invrepo.NewTransactionRepository(mockDB.DB),
		nil,
		logger.New("test", "development"),
	)
	return svc, mockDB
}

func reorderRow(status string, receivedQuantity interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "medicine_id", "medicine_name", "current_stock",
		"reorder_threshold", "requested_quantity", "status", "received_quantity",
	}).AddRow("req-1", "med-1", "Paracetamol", 5, 10, 50, status, receivedQuantity)
}

// Walks a request through approve, order and receive without an explicit
// received quantity; the linked medicine must be credited by exactly the
// requested 50.
func TestApproveOrderReceiveFlow(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()
	ctx := context.Background()

	mockDB.ExpectExec("UPDATE reorder_requests").
		WithArgs("req-1", repository.StatusApproved, "admin-1", repository.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT * FROM reorder_requests").
		WithArgs("req-1").
		WillReturnRows(reorderRow(repository.StatusApproved, nil))

	req, err := svc.Approve(ctx, "req-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, req.Status)

	mockDB.ExpectExec("UPDATE reorder_requests").
		WithArgs("req-1", repository.StatusOrdered, repository.StatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT * FROM reorder_requests").
		WithArgs("req-1").
		WillReturnRows(reorderRow(repository.StatusOrdered, nil))

	req, err = svc.Order(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusOrdered, req.Status)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE reorder_requests").
		WithArgs("req-1", repository.StatusReceived, nil, repository.StatusOrdered).
		WillReturnRows(reorderRow(repository.StatusReceived, 50))
	mockDB.ExpectQuery("UPDATE medicines").
		WithArgs("med-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(55))
	mockDB.ExpectQuery("SELECT").
		WithArgs("med-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity", "unit_price", "is_active"}).
			AddRow("med-1", "Paracetamol", 55, "2.50", true))
	mockDB.ExpectQuery("INSERT INTO transactions").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectCommit()

	req, err = svc.Receive(ctx, "req-1", nil, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusReceived, req.Status)
	require.NotNil(t, req.ReceivedQuantity)
	assert.Equal(t, 50, *req.ReceivedQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveRequiresOrdered(t *testing.T) {
	svc, mockDB := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE reorder_requests").
		WithArgs("req-1", repository.StatusReceived, nil, repository.StatusOrdered).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("SELECT status FROM reorder_requests").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(repository.StatusPending))
	mockDB.ExpectRollback()

	_, err := svc.Receive(context.Background(), "req-1", nil, "admin-1")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
