package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmacy-backend/internal/reorder/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/reorder/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// ReorderHandler handles reorder request endpoints
type ReorderHandler struct {
	service *service.ReorderService
	logger  *logger.Logger
}

// NewReorderHandler creates a new reorder handler
func NewReorderHandler(svc *service.ReorderService, log *logger.Logger) *ReorderHandler {
	return &ReorderHandler{
		service: svc,
		logger:  log,
	}
}

// CreateReorderRequest is the manual creation payload
type CreateReorderRequest struct {
	MedicineID string `json:"medicine_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"min=0"`
}

// ReceiveRequest is the receive payload
type ReceiveRequest struct {
	ReceivedQuantity *int `json:"received_quantity" validate:"omitempty,min=1"`
}

// Create creates a reorder request manually
func (h *ReorderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReorderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	created, err := h.service.CreateManual(r.Context(), req.MedicineID, req.Quantity, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// Get returns a single reorder request
func (h *ReorderHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// List lists reorder requests
func (h *ReorderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	filter := repository.ReorderFilter{
		Status:     r.URL.Query().Get("status"),
		MedicineID: r.URL.Query().Get("medicine_id"),
		Page:       page,
		PerPage:    perPage,
	}

	requests, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, requests, httputil.NewMeta(page, perPage, total))
}

// Sweep triggers a reorder sweep immediately
func (h *ReorderHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.Sweep(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"created": created})
}

// Approve moves a pending request to approved
func (h *ReorderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Order moves an approved request to ordered
func (h *ReorderHandler) Order(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Receive closes an ordered request and credits the stock
func (h *ReorderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := httputil.Validate(&req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	updated, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"), req.ReceivedQuantity, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}

// Cancel closes an open request
func (h *ReorderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}
