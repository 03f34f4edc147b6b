package service

import (
	"testing"
	"time"

	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDemand(t *testing.T) {
	t.Run("steady demand", func(t *testing.T) {
		d := ComputeDemand(60, 30, 100)
		assert.Equal(t, 60, d.TotalQuantity)
		assert.InDelta(t, 2.0, d.AverageDaily, 1e-9)
		assert.InDelta(t, 60.0, d.Predicted30Days, 1e-9)
		assert.Equal(t, 50, d.DaysUntilStockout)
	})

	t.Run("zero demand reports zero stockout", func(t *testing.T) {
		d := ComputeDemand(0, 30, 100)
		assert.Zero(t, d.AverageDaily)
		assert.Zero(t, d.Predicted30Days)
		assert.Zero(t, d.DaysUntilStockout)
	})

	t.Run("stockout rounds down", func(t *testing.T) {
		// 7 sold over 2 days, 10 in stock: 10 / 3.5 = 2.857...
		d := ComputeDemand(7, 2, 10)
		assert.Equal(t, 2, d.DaysUntilStockout)
	})
}

func testMedicine(id string, quantity, threshold int, priority string) *invrepo.Medicine {
	return &invrepo.Medicine{
		ID:               id,
		Name:             "Medicine " + id,
		Category:         "analgesic",
		Quantity:         quantity,
		ReorderThreshold: threshold,
		Priority:         priority,
		UnitPrice:        decimal.NewFromInt(2),
		ExpiryDate:       time.Now().AddDate(1, 0, 0),
		IsActive:         true,
	}
}

func TestRecommend(t *testing.T) {
	days := 30

	t.Run("healthy stock with slow demand is excluded", func(t *testing.T) {
		medicines := []*invrepo.Medicine{testMedicine("m1", 1000, 10, "medium")}
		recs := Recommend(medicines, map[string]int{"m1": 30}, days)
		assert.Empty(t, recs) // 1000 days of stock left
	})

	t.Run("low stock is included even without demand", func(t *testing.T) {
		medicines := []*invrepo.Medicine{testMedicine("m1", 5, 10, "medium")}
		recs := Recommend(medicines, map[string]int{}, days)
		require.Len(t, recs, 1)
		assert.Equal(t, UrgencyLow, recs[0].Urgency)
		assert.Equal(t, 10, recs[0].RecommendedQuantity) // ceil(0 + threshold)
	})

	t.Run("urgency tiers follow days until stockout", func(t *testing.T) {
		medicines := []*invrepo.Medicine{
			testMedicine("m1", 10, 0, "medium"),  // 10 / (60/30) = 5 days -> critical
			testMedicine("m2", 20, 0, "medium"),  // 10 days -> high
			testMedicine("m3", 50, 0, "medium"),  // 25 days -> medium
			testMedicine("m4", 100, 0, "medium"), // 50 days -> low
		}
		demand := map[string]int{"m1": 60, "m2": 60, "m3": 60, "m4": 60}

		recs := Recommend(medicines, demand, days)
		require.Len(t, recs, 4)
		assert.Equal(t, UrgencyCritical, recs[0].Urgency)
		assert.Equal(t, UrgencyHigh, recs[1].Urgency)
		assert.Equal(t, UrgencyMedium, recs[2].Urgency)
		assert.Equal(t, UrgencyLow, recs[3].Urgency)
	})

	t.Run("ties break on medicine priority", func(t *testing.T) {
		medicines := []*invrepo.Medicine{
			testMedicine("m1", 10, 0, "low"),
			testMedicine("m2", 10, 0, "critical"),
		}
		demand := map[string]int{"m1": 60, "m2": 60}

		recs := Recommend(medicines, demand, days)
		require.Len(t, recs, 2)
		assert.Equal(t, "m2", recs[0].MedicineID)
		assert.Equal(t, "m1", recs[1].MedicineID)
	})

	t.Run("recommended quantity adds threshold to projection", func(t *testing.T) {
		medicines := []*invrepo.Medicine{testMedicine("m1", 10, 15, "medium")}
		recs := Recommend(medicines, map[string]int{"m1": 45}, days) // 1.5/day -> 45 over 30d
		require.Len(t, recs, 1)
		assert.Equal(t, 60, recs[0].RecommendedQuantity) // ceil(45 + 15)
	})
}

func TestSummarizeInventory(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := testMedicine("m1", 100, 10, "medium")
	fresh.ExpiryDate = now.AddDate(1, 0, 0)

	low := testMedicine("m2", 5, 10, "medium")
	low.ExpiryDate = now.AddDate(1, 0, 0)
	low.Category = "antibiotic"

	expiring := testMedicine("m3", 50, 10, "medium")
	expiring.ExpiryDate = now.AddDate(0, 0, 15)

	expired := testMedicine("m4", 50, 10, "medium")
	expired.ExpiryDate = now.AddDate(0, 0, -1)

	total, lowStock, expiringSoon, expiredCount, value, categories := SummarizeInventory(
		[]*invrepo.Medicine{fresh, low, expiring, expired}, now)

	assert.Equal(t, 4, total)
	assert.Equal(t, 1, lowStock)
	assert.Equal(t, 1, expiringSoon)
	assert.Equal(t, 1, expiredCount)
	// (100 + 5 + 50 + 50) * 2
	assert.True(t, value.Equal(decimal.NewFromInt(410)), "value = %s", value)

	require.Len(t, categories, 2)
	assert.Equal(t, "analgesic", categories[0].Category)
	assert.Equal(t, 3, categories[0].Count)
	assert.Equal(t, "antibiotic", categories[1].Category)
	assert.Equal(t, 1, categories[1].Count)
}
