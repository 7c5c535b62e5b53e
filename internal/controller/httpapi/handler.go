package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/metrics"
	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler HTTP-обёртка над ScheduleService
type Handler struct {
	svc      *service.ScheduleService
	notifier *events.Notifier
	logger   *zap.Logger
}

func NewHandler(svc *service.ScheduleService, notifier *events.Notifier, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, notifier: notifier, logger: logger}
}

// Router собирает chi-роутер со всеми маршрутами
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	h.Routes(r)
	return r
}

// Routes регистрирует маршруты слотов
func (h *Handler) Routes(r chi.Router) {
	r.Route("/operators/{operatorID}", func(r chi.Router) {
		r.Post("/slots", h.createSlot)
		r.Get("/slots", h.listSchedule)
		r.Get("/availability", h.listAvailability)
	})

	r.Route("/slots/{slotID}", func(r chi.Router) {
		r.Get("/", h.getSlot)
		r.Patch("/", h.rescheduleSlot)
		r.Delete("/", h.deleteSlot)
		r.Post("/{event}", h.transition)
	})
}

type createSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookRequest struct {
	BookingRef string `json:"booking_ref"`
}

type pageResponse struct {
	Slots []*model.ScheduleSlot `json:"slots"`
	Next  string                `json:"next,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (h *Handler) createSlot(w http.ResponseWriter, r *http.Request) {
	var req createSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: metrics.OutcomeInvalid, Message: "invalid json body"})
		return
	}
	if req.Status == "" {
		req.Status = string(model.SlotStatusAvailable)
	}

	slot, err := h.svc.CreateSlot(r.Context(), chi.URLParam(r, "operatorID"), req.Date, req.StartTime, req.EndTime, model.SlotStatus(strings.ToUpper(req.Status)))
	metrics.ObserveSlotOperation("create", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.notifier.SlotChanged(r.Context(), events.TypeSlotCreated, slot)
	h.writeJSON(w, http.StatusCreated, slot)
}

func (h *Handler) listSchedule(w http.ResponseWriter, r *http.Request) {
	from, to := dateRange(r)
	slots, err := h.svc.ListSchedule(r.Context(), chi.URLParam(r, "operatorID"), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pageResponse{Slots: nonNil(slots)})
}

func (h *Handler) listAvailability(w http.ResponseWriter, r *http.Request) {
	operatorID := chi.URLParam(r, "operatorID")
	from, to := dateRange(r)
	q := r.URL.Query()

	// без параметров пагинации отдаём весь список (через кэш)
	if q.Get("after") == "" && q.Get("limit") == "" {
		slots, err := h.svc.ListAvailability(r.Context(), operatorID, from, to)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, pageResponse{Slots: nonNil(slots)})
		return
	}

	after, err := parseCursor(q.Get("after"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slots, next, err := h.svc.AvailabilityPage(r.Context(), operatorID, from, to, after, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := pageResponse{Slots: nonNil(slots)}
	if next != nil {
		resp.Next = formatCursor(next)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.svc.GetSlot(r.Context(), chi.URLParam(r, "slotID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")
	event := chi.URLParam(r, "event")

	var (
		slot *model.ScheduleSlot
		err  error
	)
	if event == service.EventBook {
		var req bookRequest
		if r.ContentLength != 0 {
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: metrics.OutcomeInvalid, Message: "invalid json body"})
				return
			}
		}
		slot, err = h.svc.BookSlot(r.Context(), slotID, strings.TrimSpace(req.BookingRef))
	} else {
		slot, err = h.svc.Transition(r.Context(), slotID, event)
	}

	operation := event
	if !service.IsKnownEvent(event) {
		operation = metrics.OperationUnknown
	}
	metrics.ObserveSlotOperation(operation, err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.notifier.SlotChanged(r.Context(), events.TypeForTransition(event), slot)
	h.writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) rescheduleSlot(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: metrics.OutcomeInvalid, Message: "invalid json body"})
		return
	}

	slot, err := h.svc.RescheduleSlot(r.Context(), chi.URLParam(r, "slotID"), req.StartTime, req.EndTime)
	metrics.ObserveSlotOperation("reschedule", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.notifier.SlotChanged(r.Context(), events.TypeSlotRescheduled, slot)
	h.writeJSON(w, http.StatusOK, slot)
}

func (h *Handler) deleteSlot(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")

	// читаем заранее, чтобы событие содержало удалённый слот
	slot, err := h.svc.GetSlot(r.Context(), slotID)
	if err == nil {
		err = h.svc.DeleteSlot(r.Context(), slotID)
	}
	metrics.ObserveSlotOperation("delete", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.notifier.SlotChanged(r.Context(), events.TypeSlotDeleted, slot)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	outcome := metrics.Outcome(err)
	resp := errorResponse{Error: outcome, Message: err.Error()}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	status := statusFor(outcome)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		resp.Message = "internal error"
	}

	h.writeJSON(w, status, resp)
}

func statusFor(outcome string) int {
	switch outcome {
	case metrics.OutcomeInvalid:
		return http.StatusBadRequest
	case metrics.OutcomeConflict, metrics.OutcomeStale:
		return http.StatusConflict
	case metrics.OutcomeForbidden:
		return http.StatusUnprocessableEntity
	case metrics.OutcomeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func dateRange(r *http.Request) (string, string) {
	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")
	if to == "" {
		to = from
	}
	return from, to
}

// курсор в запросе: YYYY-MM-DDTHH:MM
func parseCursor(raw string) (*model.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	date, start, ok := strings.Cut(raw, "T")
	if !ok {
		return nil, &model.ValidationError{Field: "after", Reason: "must look like YYYY-MM-DDTHH:MM"}
	}
	cursor := &model.Cursor{Date: date, StartTime: start}
	if err := cursor.Validate(); err != nil {
		return nil, err
	}
	return cursor, nil
}

func formatCursor(c *model.Cursor) string {
	return c.Date + "T" + c.StartTime
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, &model.ValidationError{Field: "limit", Reason: "must be a positive integer"}
	}
	return limit, nil
}

func nonNil(slots []*model.ScheduleSlot) []*model.ScheduleSlot {
	if slots == nil {
		return []*model.ScheduleSlot{}
	}
	return slots
}
