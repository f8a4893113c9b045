package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/service"
)

type Handler struct {
	svc *service.DispatchService
	log *zap.Logger
}

func NewHandler(svc *service.DispatchService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.With(zap.String("component", "http"))}
}

type assignDTO struct {
	JobID        uuid.UUID `json:"job_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
}

type updateJobDTO struct {
	Status          *string    `json:"status,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	TradeType       *string    `json:"trade_type,omitempty"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	TimeWindowStart *time.Time `json:"time_window_start,omitempty"`
	TimeWindowEnd   *time.Time `json:"time_window_end,omitempty"`
}

type technicianStatusDTO struct {
	Status string `json:"status"`
}

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Assign godoc
// @Summary Assign a job to a technician
// @Description Records a primary assignment. A PENDING job becomes SCHEDULED; earlier assignments of the job are superseded.
// @Tags assignments
// @Accept json
// @Produce json
// @Param X-User-ID header string true "caller user id"
// @Param X-Company-ID header string true "caller company id"
// @Param request body assignDTO true "job and technician"
// @Success 201 {object} entity.Assignment
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /assign [post]
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	var dto assignDTO
	if err := decode(r, assignSchema, &dto); err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.svc.Assign(r.Context(), p, dto.JobID, dto.TechnicianID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out.Assignment)
}

// Board godoc
// @Summary Dispatch board for a day
// @Description Every active technician with the jobs assigned to them that day, plus unassigned jobs. order=route sequences each technician's jobs.
// @Tags board
// @Produce json
// @Param date query string true "day, YYYY-MM-DD"
// @Param order query string false "chronological (default) or route"
// @Success 200 {object} service.Board
// @Failure 400 {object} apiError
// @Router /dispatch-board [get]
func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	date := r.URL.Query().Get("date")
	if date == "" {
		writeErr(w, http.StatusBadRequest, "date is required")
		return
	}
	order, err := service.ParseBoardOrder(r.URL.Query().Get("order"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	board, err := h.svc.Board(r.Context(), p, date, order)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	j, err := h.svc.GetJob(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// UpdateJob godoc
// @Summary Update a job
// @Description Partial update. A status change must follow the job lifecycle.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body updateJobDTO true "fields to change"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id} [put]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto updateJobDTO
	if err := decode(r, updateJobSchema, &dto); err != nil {
		h.fail(w, r, err)
		return
	}

	j, err := h.svc.UpdateJob(r.Context(), p, id, service.JobUpdate{
		Status:          dto.Status,
		Priority:        dto.Priority,
		TradeType:       dto.TradeType,
		ScheduledStart:  dto.ScheduledStart,
		ScheduledEnd:    dto.ScheduledEnd,
		TimeWindowStart: dto.TimeWindowStart,
		TimeWindowEnd:   dto.TimeWindowEnd,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// ListAssignments godoc
// @Summary Technician assignments in a window
// @Tags technicians
// @Produce json
// @Param id path string true "technician id (uuid)"
// @Param from query string true "RFC3339"
// @Param to query string true "RFC3339"
// @Success 200 {array} entity.Assignment
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /technicians/{id}/assignments [get]
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "to must be RFC3339")
		return
	}

	list, err := h.svc.ListForTechnician(r.Context(), p, id, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateTechnicianStatus godoc
// @Summary Set technician status
// @Tags technicians
// @Accept json
// @Produce json
// @Param id path string true "technician id (uuid)"
// @Param request body technicianStatusDTO true "AVAILABLE, ON_JOB, ON_BREAK or OFF_DUTY"
// @Success 200 {object} entity.Technician
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /technicians/{id}/status [put]
func (h *Handler) UpdateTechnicianStatus(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto technicianStatusDTO
	if err := decode(r, technicianStatusSchema, &dto); err != nil {
		h.fail(w, r, err)
		return
	}

	t, err := h.svc.UpdateTechnicianStatus(r.Context(), p, id, dto.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// RecordLocation godoc
// @Summary Record a technician position
// @Tags technicians
// @Accept json
// @Param id path string true "technician id (uuid)"
// @Param request body locationDTO true "position in decimal degrees"
// @Success 204
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /technicians/{id}/location [put]
func (h *Handler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto locationDTO
	if err := decode(r, locationSchema, &dto); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.RecordLocation(r.Context(), p, id, geo.LatLng{Lat: dto.Lat, Lng: dto.Lng}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TechnicianRoute godoc
// @Summary Sequenced route for a technician's day
// @Tags technicians
// @Produce json
// @Param id path string true "technician id (uuid)"
// @Param date query string true "day, YYYY-MM-DD"
// @Success 200 {object} service.TechnicianRoute
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /technicians/{id}/route [get]
func (h *Handler) TechnicianRoute(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeErr(w, http.StatusBadRequest, "date is required")
		return
	}

	plan, err := h.svc.TechnicianRoute(r.Context(), p, id, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, apperr.Validationf("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// mustPrincipal is only called behind Authenticate.
func mustPrincipal(r *http.Request) entity.Principal {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		panic("httptransport: handler mounted without Authenticate")
	}
	return p
}
