package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/inventory/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// TransactionHandler exposes the stock movement ledger
type TransactionHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(svc *service.InventoryService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

// List lists ledger entries, newest first
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	filter := repository.TransactionFilter{
		MedicineID: r.URL.Query().Get("medicine_id"),
		Type:       r.URL.Query().Get("type"),
		Page:       page,
		PerPage:    perPage,
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		if t, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = t
		}
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transactions, httputil.NewMeta(page, perPage, total))
}
