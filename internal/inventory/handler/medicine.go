package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/inventory/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// MedicineHandler handles medicine endpoints
type MedicineHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc *service.InventoryService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

// MedicineRequest is the create/update payload
type MedicineRequest struct {
	Name             string          `json:"name" validate:"required,min=1,max=200"`
	GenericName      string          `json:"generic_name" validate:"max=200"`
	Brand            string          `json:"brand" validate:"max=200"`
	Category         string          `json:"category" validate:"required,min=1,max=100"`
	Description      string          `json:"description" validate:"max=2000"`
	Manufacturer     string          `json:"manufacturer" validate:"max=200"`
	BatchNumber      string          `json:"batch_number" validate:"max=100"`
	ExpiryDate       time.Time       `json:"expiry_date" validate:"required"`
	Quantity         int             `json:"quantity" validate:"min=0"`
	Unit             string          `json:"unit" validate:"max=50"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ReorderThreshold int             `json:"reorder_threshold" validate:"min=0"`
	Priority         string          `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// AdjustStockRequest is the stock adjustment payload
type AdjustStockRequest struct {
	Adjustment int    `json:"adjustment" validate:"required"`
	Type       string `json:"type" validate:"omitempty,oneof=purchase sale adjustment expired return"`
	Reason     string `json:"reason" validate:"max=500"`
}

func (req *MedicineRequest) toMedicine() *repository.Medicine {
	return &repository.Medicine{
		Name:             req.Name,
		GenericName:      req.GenericName,
		Brand:            req.Brand,
		Category:         req.Category,
		Description:      req.Description,
		Manufacturer:     req.Manufacturer,
		BatchNumber:      req.BatchNumber,
		ExpiryDate:       req.ExpiryDate,
		Quantity:         req.Quantity,
		Unit:             req.Unit,
		UnitPrice:        req.UnitPrice,
		ReorderThreshold: req.ReorderThreshold,
		Priority:         req.Priority,
	}
}

// Create handles medicine creation
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req MedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.UnitPrice.IsNegative() {
		httputil.Error(w, errors.BadRequest("unit_price must not be negative"))
		return
	}

	view, err := h.service.CreateMedicine(r.Context(), req.toMedicine())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, view)
}

// Get returns a single medicine
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.service.GetMedicine(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// List lists medicines with filters and pagination
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	filter := repository.MedicineFilter{
		Search:       r.URL.Query().Get("search"),
		Category:     r.URL.Query().Get("category"),
		Priority:     r.URL.Query().Get("priority"),
		LowStock:     r.URL.Query().Get("low_stock") == "true",
		ExpiringSoon: r.URL.Query().Get("expiring_soon") == "true",
		Expired:      r.URL.Query().Get("expired") == "true",
		Page:         page,
		PerPage:      perPage,
	}

	views, total, err := h.service.ListMedicines(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, views, httputil.NewMeta(page, perPage, total))
}

// Update handles medicine updates
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.UnitPrice.IsNegative() {
		httputil.Error(w, errors.BadRequest("unit_price must not be negative"))
		return
	}

	medicine := req.toMedicine()
	medicine.ID = id

	view, err := h.service.UpdateMedicine(r.Context(), medicine)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Delete deactivates a medicine
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteMedicine(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// AdjustStock changes a medicine's quantity and records the ledger entry
func (h *MedicineHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AdjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	txType := req.Type
	if txType == "" {
		if req.Adjustment > 0 {
			txType = repository.TxPurchase
		} else {
			txType = repository.TxAdjustment
		}
	}

	record, err := h.service.AdjustStock(r.Context(), id, req.Adjustment, txType, req.Reason, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}
