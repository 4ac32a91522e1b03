package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// hostOp is the shape of the host overrides that target one user.
type hostOp func(ctx context.Context, hostID, eventID, userID string) (model.Result, error)

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res model.Result, err error) {
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}
	writeResult(w, res)
}

func (h *Handler) serveHostOp(op hostOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := op(r.Context(), CallerFrom(r.Context()).ID, chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
		h.respond(w, r, res, err)
	}
}

// waitlistParam parses the optional ?waitlist= flag of plus-one routes.
func waitlistParam(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("waitlist")
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// ─── User operations ──────────────────────────────────────────────────────────

// ToggleJoinRequest handles POST /events/{id}/join
func (h *Handler) ToggleJoinRequest(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	res, err := h.members.ToggleJoinRequest(r.Context(), chi.URLParam(r, "id"), caller.ID, caller.Name)
	h.respond(w, r, res, err)
}

// RequestWithdrawal handles POST /events/{id}/withdrawal
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	res, err := h.members.RequestWithdrawal(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()).ID)
	h.respond(w, r, res, err)
}

// CancelWithdrawal handles DELETE /events/{id}/withdrawal
func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	res, err := h.members.CancelWithdrawal(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()).ID)
	h.respond(w, r, res, err)
}

// SubmitPlusOneRequest handles POST /events/{id}/plus-ones
func (h *Handler) SubmitPlusOneRequest(w http.ResponseWriter, r *http.Request) {
	var req model.FriendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.members.SubmitPlusOneRequest(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()).ID, req.FriendName)
	h.respond(w, r, res, err)
}

// Status handles GET /events/{id}/status
// Reports the caller's own membership state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.members.Status(r.Context(), chi.URLParam(r, "id"), CallerFrom(r.Context()).ID)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Roster handles GET /events/{id}/roster
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.members.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// ─── Host operations ──────────────────────────────────────────────────────────

// AcceptJoinRequest handles POST /events/{id}/join-requests/{userID}/accept
func (h *Handler) AcceptJoinRequest(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.AcceptJoinRequest)(w, r)
}

// RemoveJoinRequest handles DELETE /events/{id}/join-requests/{userID}
func (h *Handler) RemoveJoinRequest(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.RemoveJoinRequest)(w, r)
}

// AcceptWaitlistRequest handles POST /events/{id}/waitlist/{userID}/accept
func (h *Handler) AcceptWaitlistRequest(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.AcceptWaitlistRequest)(w, r)
}

// RejectWaitlist handles DELETE /events/{id}/waitlist/{userID}
func (h *Handler) RejectWaitlist(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.RejectWaitlist)(w, r)
}

// AcceptWithdrawalRequest handles POST /events/{id}/withdrawals/{userID}/accept
func (h *Handler) AcceptWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.AcceptWithdrawalRequest)(w, r)
}

// RejectWithdrawalRequest handles POST /events/{id}/withdrawals/{userID}/reject
func (h *Handler) RejectWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.RejectWithdrawalRequest)(w, r)
}

// KickParticipant handles DELETE /events/{id}/participants/{userID}
func (h *Handler) KickParticipant(w http.ResponseWriter, r *http.Request) {
	h.serveHostOp(h.members.KickParticipant)(w, r)
}

// ApprovePlusOneRequest handles POST /events/{id}/plus-ones/{requestID}/approve
func (h *Handler) ApprovePlusOneRequest(w http.ResponseWriter, r *http.Request) {
	isWaitlist, err := waitlistParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid waitlist flag")
		return
	}
	res, err := h.members.ApprovePlusOneRequest(r.Context(), CallerFrom(r.Context()).ID,
		chi.URLParam(r, "id"), chi.URLParam(r, "requestID"), isWaitlist)
	h.respond(w, r, res, err)
}

// RejectPlusOneRequest handles DELETE /events/{id}/plus-ones/{requestID}
func (h *Handler) RejectPlusOneRequest(w http.ResponseWriter, r *http.Request) {
	isWaitlist, err := waitlistParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid waitlist flag")
		return
	}
	res, err := h.members.RejectPlusOneRequest(r.Context(), CallerFrom(r.Context()).ID,
		chi.URLParam(r, "id"), chi.URLParam(r, "requestID"), isWaitlist)
	h.respond(w, r, res, err)
}

// AddHostPlusOne handles POST /events/{id}/host-plus-ones
func (h *Handler) AddHostPlusOne(w http.ResponseWriter, r *http.Request) {
	var req model.FriendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.members.AddHostPlusOne(r.Context(), CallerFrom(r.Context()).ID, chi.URLParam(r, "id"), req.FriendName)
	h.respond(w, r, res, err)
}
