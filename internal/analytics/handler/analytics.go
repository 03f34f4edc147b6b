package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmacy-backend/internal/analytics/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// AnalyticsHandler handles analytics endpoints
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc *service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  log,
	}
}

// daysParam reads the window size, bounded to 1..365 with a 30-day default.
func daysParam(r *http.Request) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 1 {
		return 30
	}
	if days > 365 {
		return 365
	}
	return days
}

// DemandTrends returns the demand projection for one medicine
func (h *AnalyticsHandler) DemandTrends(w http.ResponseWriter, r *http.Request) {
	trend, err := h.service.DemandTrends(r.Context(), chi.URLParam(r, "id"), daysParam(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, trend)
}

// Inventory returns the inventory-wide report
func (h *AnalyticsHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.InventoryAnalytics(r.Context(), daysParam(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Recommendations returns restock recommendations
func (h *AnalyticsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.ReorderRecommendations(r.Context(), daysParam(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, recs)
}
