package service

import (
	"context"
	"math"
	"sort"
	"time"

	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// AnalyticsService derives demand and inventory figures from the ledger
type AnalyticsService struct {
	medicineRepo *invrepo.MedicineRepository
	txRepo       *invrepo.TransactionRepository
	logger       *logger.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(medicineRepo *invrepo.MedicineRepository, txRepo *invrepo.TransactionRepository, log *logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		medicineRepo: medicineRepo,
		txRepo:       txRepo,
		logger:       log,
	}
}

// Demand is the projection derived from sale and dispense volume over a
// window. DaysUntilStockout is 0 when there was no demand at all; callers
// must not read that as "out tomorrow".
type Demand struct {
	TotalQuantity     int     `json:"total_quantity"`
	AverageDaily      float64 `json:"average_daily"`
	Predicted30Days   float64 `json:"predicted_30_days"`
	DaysUntilStockout int     `json:"days_until_stockout"`
}

// ComputeDemand projects demand from the total quantity moved over a window.
func ComputeDemand(totalQuantity, days, currentStock int) Demand {
	d := Demand{TotalQuantity: totalQuantity}
	if days <= 0 {
		return d
	}

	d.AverageDaily = float64(totalQuantity) / float64(days)
	d.Predicted30Days = d.AverageDaily * 30

	if d.AverageDaily > 0 {
		d.DaysUntilStockout = int(math.Floor(float64(currentStock) / d.AverageDaily))
	}

	return d
}

// DemandTrend is the per-medicine demand report
type DemandTrend struct {
	MedicineID   string                `json:"medicine_id"`
	MedicineName string                `json:"medicine_name"`
	Days         int                   `json:"days"`
	CurrentStock int                   `json:"current_stock"`
	Demand       Demand                `json:"demand"`
	Daily        []invrepo.DailyDemand `json:"daily"`
}

// DemandTrends buckets sale and dispense volume for one medicine by day and
// projects average daily demand, 30-day demand, and days until stockout.
func (s *AnalyticsService) DemandTrends(ctx context.Context, medicineID string, days int) (*DemandTrend, error) {
	medicine, err := s.medicineRepo.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	daily, err := s.txRepo.DemandByDay(ctx, medicineID, since)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, d := range daily {
		total += d.Quantity
	}

	return &DemandTrend{
		MedicineID:   medicine.ID,
		MedicineName: medicine.Name,
		Days:         days,
		CurrentStock: medicine.Quantity,
		Demand:       ComputeDemand(total, days, medicine.Quantity),
		Daily:        daily,
	}, nil
}

// CategorySummary aggregates one category's catalog share
type CategorySummary struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Value    decimal.Decimal `json:"value"`
}

// InventoryReport is the inventory-wide analytics response
type InventoryReport struct {
	Days           int                   `json:"days"`
	TotalMedicines int                   `json:"total_medicines"`
	LowStock       int                   `json:"low_stock"`
	ExpiringSoon   int                   `json:"expiring_soon"`
	Expired        int                   `json:"expired"`
	InventoryValue decimal.Decimal       `json:"inventory_value"`
	Sales          *invrepo.SalesSummary `json:"sales"`
	TopSellers     []invrepo.TopSeller   `json:"top_sellers"`
	Categories     []CategorySummary     `json:"categories"`
}

// SummarizeInventory computes the catalog-side counters from a snapshot of
// the active catalog.
func SummarizeInventory(medicines []*invrepo.Medicine, now time.Time) (total, lowStock, expiringSoon, expired int, value decimal.Decimal, categories []CategorySummary) {
	byCategory := map[string]*CategorySummary{}

	for _, m := range medicines {
		total++
		if m.IsLowStock() {
			lowStock++
		}
		if m.IsExpiringSoon(now) {
			expiringSoon++
		}
		if m.IsExpired(now) {
			expired++
		}
		value = value.Add(m.InventoryValue())

		c, ok := byCategory[m.Category]
		if !ok {
			c = &CategorySummary{Category: m.Category}
			byCategory[m.Category] = c
		}
		c.Count++
		c.Value = c.Value.Add(m.InventoryValue())
	}

	for _, c := range byCategory {
		categories = append(categories, *c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Category < categories[j].Category })

	return
}

// InventoryAnalytics aggregates catalog counters, the sales summary, and the
// top sellers over the window.
func (s *AnalyticsService) InventoryAnalytics(ctx context.Context, days int) (*InventoryReport, error) {
	medicines, err := s.medicineRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)

	sales, err := s.txRepo.SalesSummary(ctx, since)
	if err != nil {
		return nil, err
	}

	topSellers, err := s.txRepo.TopSellers(ctx, since, 10)
	if err != nil {
		return nil, err
	}

	total, lowStock, expiringSoon, expired, value, categories := SummarizeInventory(medicines, time.Now())

	return &InventoryReport{
		Days:           days,
		TotalMedicines: total,
		LowStock:       lowStock,
		ExpiringSoon:   expiringSoon,
		Expired:        expired,
		InventoryValue: value,
		Sales:          sales,
		TopSellers:     topSellers,
		Categories:     categories,
	}, nil
}

// Urgency tiers, ordered most urgent first.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

var tierOrder = map[string]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// Recommendation suggests a restock quantity for one medicine
type Recommendation struct {
	MedicineID          string  `json:"medicine_id"`
	MedicineName        string  `json:"medicine_name"`
	Priority            string  `json:"priority"`
	CurrentStock        int     `json:"current_stock"`
	ReorderThreshold    int     `json:"reorder_threshold"`
	AverageDaily        float64 `json:"average_daily"`
	Predicted30Days     float64 `json:"predicted_30_days"`
	DaysUntilStockout   int     `json:"days_until_stockout"`
	RecommendedQuantity int     `json:"recommended_quantity"`
	Urgency             string  `json:"urgency"`
}

// Recommend builds restock recommendations from a catalog snapshot and the
// per-medicine demand over the window. A medicine is included when it is at
// or below its threshold, or demand projects a stockout within 60 days.
// Medicines with zero demand never get an urgency above low.
func Recommend(medicines []*invrepo.Medicine, demand map[string]int, days int) []Recommendation {
	var recs []Recommendation

	for _, m := range medicines {
		d := ComputeDemand(demand[m.ID], days, m.Quantity)

		projectedStockout := d.AverageDaily > 0 && d.DaysUntilStockout <= 60
		if !m.IsLowStock() && !projectedStockout {
			continue
		}

		urgency := UrgencyLow
		if d.AverageDaily > 0 {
			switch {
			case d.DaysUntilStockout <= 7:
				urgency = UrgencyCritical
			case d.DaysUntilStockout <= 14:
				urgency = UrgencyHigh
			case d.DaysUntilStockout <= 30:
				urgency = UrgencyMedium
			}
		}

		recs = append(recs, Recommendation{
			MedicineID:          m.ID,
			MedicineName:        m.Name,
			Priority:            m.Priority,
			CurrentStock:        m.Quantity,
			ReorderThreshold:    m.ReorderThreshold,
			AverageDaily:        d.AverageDaily,
			Predicted30Days:     d.Predicted30Days,
			DaysUntilStockout:   d.DaysUntilStockout,
			RecommendedQuantity: int(math.Ceil(d.Predicted30Days + float64(m.ReorderThreshold))),
			Urgency:             urgency,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if tierOrder[recs[i].Urgency] != tierOrder[recs[j].Urgency] {
			return tierOrder[recs[i].Urgency] < tierOrder[recs[j].Urgency]
		}
		return tierOrder[recs[i].Priority] < tierOrder[recs[j].Priority]
	})

	return recs
}

// ReorderRecommendations projects demand for every active medicine and
// suggests restock quantities.
func (s *AnalyticsService) ReorderRecommendations(ctx context.Context, days int) ([]Recommendation, error) {
	medicines, err := s.medicineRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	perMedicine, err := s.txRepo.DemandPerMedicine(ctx, since)
	if err != nil {
		return nil, err
	}

	demand := make(map[string]int, len(perMedicine))
	for _, d := range perMedicine {
		demand[d.MedicineID] = d.Quantity
	}

	return Recommend(medicines, demand, days), nil
}
