package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter builds the full API router with the global middleware stack.
func NewRouter(h *Handler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Identity)
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	// Public reads.
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/users/{id}", h.GetProfile)

	r.Group(func(r chi.Router) {
		r.Use(RequireCaller)

		r.Post("/events", h.CreateEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Put("/users/{id}", h.SaveProfile)

		r.Get("/events/{id}/status", h.Status)
		r.Get("/events/{id}/roster", h.Roster)
		r.Get("/events/{id}/stream", h.Stream)

		r.Post("/events/{id}/join", h.ToggleJoinRequest)
		r.Post("/events/{id}/withdrawal", h.RequestWithdrawal)
		r.Delete("/events/{id}/withdrawal", h.CancelWithdrawal)
		r.Post("/events/{id}/plus-ones", h.SubmitPlusOneRequest)

		// Host overrides.
		r.Post("/events/{id}/join-requests/{userID}/accept", h.AcceptJoinRequest)
		r.Delete("/events/{id}/join-requests/{userID}", h.RemoveJoinRequest)
		r.Post("/events/{id}/waitlist/{userID}/accept", h.AcceptWaitlistRequest)
		r.Delete("/events/{id}/waitlist/{userID}", h.RejectWaitlist)
		r.Post("/events/{id}/withdrawals/{userID}/accept", h.AcceptWithdrawalRequest)
		r.Post("/events/{id}/withdrawals/{userID}/reject", h.RejectWithdrawalRequest)
		r.Post("/events/{id}/plus-ones/{requestID}/approve", h.ApprovePlusOneRequest)
		r.Delete("/events/{id}/plus-ones/{requestID}", h.RejectPlusOneRequest)
		r.Post("/events/{id}/host-plus-ones", h.AddHostPlusOne)
		r.Delete("/events/{id}/participants/{userID}", h.KickParticipant)

		r.Post("/notifications", h.CreateNotification)
		r.Get("/notifications", h.ListNotifications)

		r.Post("/chat/members", h.AddChatMember)
		r.Delete("/chat/members", h.RemoveChatMember)
	})

	return r
}
