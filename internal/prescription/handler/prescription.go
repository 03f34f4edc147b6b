package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmacy-backend/internal/prescription/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/prescription/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	service *service.PrescriptionService
	logger  *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(svc *service.PrescriptionService, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		service: svc,
		logger:  log,
	}
}

// PrescriptionItemRequest is one item line in the create payload
type PrescriptionItemRequest struct {
	MedicineID string `json:"medicine_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	Dosage     string `json:"dosage" validate:"max=200"`
	Duration   string `json:"duration" validate:"max=200"`
}

// CreatePrescriptionRequest is the create payload
type CreatePrescriptionRequest struct {
	PatientName    string                    `json:"patient_name" validate:"required,min=1,max=200"`
	PatientContact string                    `json:"patient_contact" validate:"max=200"`
	DoctorName     string                    `json:"doctor_name" validate:"required,min=1,max=200"`
	DoctorLicense  string                    `json:"doctor_license" validate:"max=100"`
	Notes          string                    `json:"notes" validate:"max=2000"`
	Items          []PrescriptionItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Create records a new pending prescription
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePrescriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p := &repository.Prescription{
		PatientName:    req.PatientName,
		PatientContact: req.PatientContact,
		DoctorName:     req.DoctorName,
		DoctorLicense:  req.DoctorLicense,
		Notes:          req.Notes,
	}
	for _, it := range req.Items {
		p.Items = append(p.Items, &repository.PrescriptionItem{
			MedicineID: it.MedicineID,
			Quantity:   it.Quantity,
			Dosage:     it.Dosage,
			Duration:   it.Duration,
		})
	}

	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, created)
}

// Get returns a single prescription with items
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// List lists prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	filter := repository.PrescriptionFilter{
		Status:  r.URL.Query().Get("status"),
		Patient: r.URL.Query().Get("patient"),
		Page:    page,
		PerPage: perPage,
	}

	prescriptions, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, prescriptions, httputil.NewMeta(page, perPage, total))
}

// ValidatePrescriptionRequest is the optional validate payload
type ValidatePrescriptionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// Validate moves a pending prescription to validated or rejected. The body
// is optional; a note, when present, is attached on success.
func (h *PrescriptionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidatePrescriptionRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if err := httputil.Validate(&req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	p, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Dispense debits stock for a validated prescription
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Dispense(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
