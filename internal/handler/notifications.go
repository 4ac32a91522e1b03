package handler

import (
	"net/http"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// CreateNotification handles POST /notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req model.NotificationInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := h.notes.Create(r.Context(), CallerFrom(r.Context()).ID, req)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// ListNotifications handles GET /notifications
// Returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.List(r.Context(), CallerFrom(r.Context()).ID)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	if list == nil {
		list = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, list)
}

// AddChatMember handles POST /chat/members
func (h *Handler) AddChatMember(w http.ResponseWriter, r *http.Request) {
	h.chatMember(w, r, true)
}

// RemoveChatMember handles DELETE /chat/members
func (h *Handler) RemoveChatMember(w http.ResponseWriter, r *http.Request) {
	h.chatMember(w, r, false)
}

func (h *Handler) chatMember(w http.ResponseWriter, r *http.Request, add bool) {
	if h.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is disabled")
		return
	}

	var req model.ChatMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	callerID := CallerFrom(r.Context()).ID
	var err error
	if add {
		err = h.chat.Add(r.Context(), callerID, req)
	} else {
		err = h.chat.Remove(r.Context(), callerID, req)
	}
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.OperationResponse{Success: true})
}
