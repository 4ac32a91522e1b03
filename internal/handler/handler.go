// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/chat"
	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/service"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler holds all HTTP handlers for the event membership API.
type Handler struct {
	events  *service.EventService
	members *service.Reconciler
	notes   *service.NotificationService
	chat    *chat.Service // nil when chat is disabled
	changes store.Subscriber
	log     zerolog.Logger
}

// New constructs a Handler. chatSvc may be nil.
func New(
	events *service.EventService,
	members *service.Reconciler,
	notes *service.NotificationService,
	chatSvc *chat.Service,
	changes store.Subscriber,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		events:  events,
		members: members,
		notes:   notes,
		chat:    chatSvc,
		changes: changes,
		log:     log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEventFull):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeOpError writes err with the status of its kind. Errors without a kind
// are logged and reported with a generic message.
func (h *Handler) writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	var op *model.OpError
	if !errors.As(err, &op) {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("unclassified error")
		writeError(w, status, "internal error")
		return
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("operation failed")
	}
	writeError(w, status, op.Error())
}

// writeResult writes the envelope of a successful membership operation.
func writeResult(w http.ResponseWriter, res model.Result) {
	writeJSON(w, http.StatusOK, model.OperationResponse{
		Success: true,
		Message: res.Message,
		State:   res.State,
	})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
