package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pkgerrors "github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicineDerivedFlags(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("low stock tracks the threshold", func(t *testing.T) {
		tests := []struct {
			quantity  int
			threshold int
			want      bool
		}{
			{quantity: 5, threshold: 10, want: true},
			{quantity: 10, threshold: 10, want: true},
			{quantity: 11, threshold: 10, want: false},
			{quantity: 0, threshold: 0, want: true},
		}

		for _, tt := range tests {
			m := &Medicine{Quantity: tt.quantity, ReorderThreshold: tt.threshold}
			assert.Equal(t, tt.want, m.IsLowStock(), "quantity=%d threshold=%d", tt.quantity, tt.threshold)
		}
	})

	t.Run("expired means strictly in the past", func(t *testing.T) {
		assert.True(t, (&Medicine{ExpiryDate: now.Add(-time.Hour)}).IsExpired(now))
		assert.False(t, (&Medicine{ExpiryDate: now.Add(time.Hour)}).IsExpired(now))
	})

	t.Run("expiring soon is a half-open 30 day window", func(t *testing.T) {
		tests := []struct {
			expiry time.Time
			want   bool
		}{
			{expiry: now.AddDate(0, 0, -1), want: false}, // already expired
			{expiry: now.AddDate(0, 0, 15), want: true},
			{expiry: now.AddDate(0, 0, 30), want: true},
			{expiry: now.AddDate(0, 0, 31), want: false},
		}

		for _, tt := range tests {
			m := &Medicine{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, m.IsExpiringSoon(now), "expiry=%s", tt.expiry)
		}
	})

	t.Run("days until expiry", func(t *testing.T) {
		m := &Medicine{ExpiryDate: now.AddDate(0, 0, 10)}
		assert.Equal(t, 10, m.DaysUntilExpiry(now))

		past := &Medicine{ExpiryDate: now.AddDate(0, 0, -3)}
		assert.Equal(t, -3, past.DaysUntilExpiry(now))
	})
}

func TestAdjustStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewMedicineRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE medicines").
		WithArgs("med-1", 25).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(30))

	previous, current, err := repo.AdjustStock(context.Background(), "med-1", 25)
	require.NoError(t, err)
	assert.Equal(t, 5, previous)
	assert.Equal(t, 30, current)

	mockDB.ExpectationsWereMet(t)
}

func TestAdjustStockInsufficient(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewMedicineRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE medicines").
		WithArgs("med-1", -10).
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.AdjustStock(context.Background(), "med-1", -10)
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestGetByIDNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewMedicineRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
