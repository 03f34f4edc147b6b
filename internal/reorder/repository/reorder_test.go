package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pkgerrors "github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIfNoneOpen(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewReorderRepository(mockDB.DB)
	now := time.Now()

	mockDB.ExpectQuery("INSERT INTO reorder_requests").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := &ReorderRequest{
		MedicineID:        "med-1",
		MedicineName:      "Paracetamol",
		CurrentStock:      5,
		ReorderThreshold:  10,
		RequestedQuantity: 50,
	}

	created, err := repo.CreateIfNoneOpen(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, req.Status)
	assert.NotEmpty(t, req.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateIfNoneOpenAlreadyExists(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewReorderRepository(mockDB.DB)

	// ON CONFLICT DO NOTHING returns no rows when an open request exists
	mockDB.ExpectQuery("INSERT INTO reorder_requests").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

	created, err := repo.CreateIfNoneOpen(context.Background(), &ReorderRequest{MedicineID: "med-1"})
	require.NoError(t, err)
	assert.False(t, created)

	mockDB.ExpectationsWereMet(t)
}

func TestApprove(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewReorderRepository(mockDB.DB)

	mockDB.ExpectExec("UPDATE reorder_requests").
		WithArgs("req-1", StatusApproved, "user-1", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Approve(context.Background(), "req-1", "user-1"))
	mockDB.ExpectationsWereMet(t)
}

func TestApproveWrongState(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewReorderRepository(mockDB.DB)

	mockDB.ExpectExec("UPDATE reorder_requests").
		WithArgs("req-1", StatusApproved, "user-1", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT status FROM reorder_requests").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusOrdered))

	err := repo.Approve(context.Background(), "req-1", "user-1")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, StatusOrdered)
	assert.Contains(t, appErr.Message, StatusPending)

	mockDB.ExpectationsWereMet(t)
}

func TestApproveNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewReorderRepository(mockDB.DB)

	mockDB.ExpectExec("UPDATE reorder_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT status FROM reorder_requests").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := repo.Approve(context.Background(), "missing", "user-1")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
