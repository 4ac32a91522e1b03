package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// CreateEvent handles POST /events
// The caller becomes the host.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), CallerFrom(r.Context()).ID, req)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.EventView{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id} (host only)
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), CallerFrom(r.Context()).ID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// GetProfile handles GET /users/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.events.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// SaveProfile handles PUT /users/{id}
// Users may only write their own profile.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UserProfile
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	profile, err := h.events.SaveProfile(r.Context(), CallerFrom(r.Context()).ID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
