// Package chat keeps each event's group chat in step with its participants.
// Users are identified in the chat by the phone number on their profile.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// GroupClient manages group chats on the messaging backend.
type GroupClient interface {
	AddParticipants(ctx context.Context, groupID string, phones []string) error
	RemoveParticipants(ctx context.Context, groupID string, phones []string) error
	// Freeze makes the group read-only for everyone but its admins.
	Freeze(ctx context.Context, groupID string) error
}

// Service adds and removes event participants from the event's group chat.
type Service struct {
	events   store.Events
	profiles store.Profiles
	client   GroupClient
	log      zerolog.Logger
}

// NewService constructs a Service.
func NewService(events store.Events, profiles store.Profiles, client GroupClient, log zerolog.Logger) *Service {
	return &Service{events: events, profiles: profiles, client: client, log: log}
}

// Add handles an add-member request from an authenticated caller.
func (s *Service) Add(ctx context.Context, callerID string, req model.ChatMemberRequest) error {
	if err := validate(callerID, req); err != nil {
		return err
	}
	return s.AddMember(ctx, req.EventID, req.UserID)
}

// Remove handles a remove-member request from an authenticated caller.
func (s *Service) Remove(ctx context.Context, callerID string, req model.ChatMemberRequest) error {
	if err := validate(callerID, req); err != nil {
		return err
	}
	return s.RemoveMember(ctx, req.EventID, req.UserID)
}

// AddMember adds userID to the event's group. Adding an existing member is
// accepted by the backend, so the call is idempotent.
func (s *Service) AddMember(ctx context.Context, eventID, userID string) error {
	groupID, phone, err := s.resolve(ctx, eventID, userID)
	if err != nil || groupID == "" {
		return err
	}
	if err := s.client.AddParticipants(ctx, groupID, []string{phone}); err != nil {
		return model.Failed(err, "Failed to add user to chat.")
	}
	s.log.Info().Str("event_id", eventID).Str("user_id", userID).Msg("user added to event chat")
	return nil
}

// RemoveMember removes userID from the event's group.
func (s *Service) RemoveMember(ctx context.Context, eventID, userID string) error {
	groupID, phone, err := s.resolve(ctx, eventID, userID)
	if err != nil || groupID == "" {
		return err
	}
	if err := s.client.RemoveParticipants(ctx, groupID, []string{phone}); err != nil {
		return model.Failed(err, "Failed to remove user from chat.")
	}
	s.log.Info().Str("event_id", eventID).Str("user_id", userID).Msg("user removed from event chat")
	return nil
}

// Freeze makes the event's group read-only. Events without a group are
// skipped.
func (s *Service) Freeze(ctx context.Context, event model.Event) error {
	if event.ChatGroupID == "" {
		return nil
	}
	if err := s.client.Freeze(ctx, event.ChatGroupID); err != nil {
		return model.Failed(err, "Failed to freeze chat.")
	}
	s.log.Info().Str("event_id", event.ID).Msg("event chat frozen")
	return nil
}

// resolve returns the event's group id and the user's phone number. An empty
// group id means the event has no chat and there is nothing to do.
func (s *Service) resolve(ctx context.Context, eventID, userID string) (string, string, error) {
	if model.IsSynthetic(userID) {
		return "", "", model.Invalid("plus-one participants have no chat account")
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", "", model.Fail(model.ErrNotFound, "Event not found.")
		}
		return "", "", model.Failed(err, "Failed to load event.")
	}
	if event.ChatGroupID == "" {
		s.log.Debug().Str("event_id", eventID).Msg("event has no chat group")
		return "", "", nil
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", "", model.Fail(model.ErrNotFound, "User profile not found.")
		}
		return "", "", model.Failed(err, "Failed to load user profile.")
	}
	if strings.TrimSpace(profile.PhoneNumber) == "" {
		return "", "", model.Fail(model.ErrNotFound, "User has no phone number.")
	}
	return event.ChatGroupID, profile.PhoneNumber, nil
}

func validate(callerID string, req model.ChatMemberRequest) error {
	if callerID == "" {
		return model.Fail(model.ErrUnauthenticated, "User must be authenticated.")
	}
	if req.EventID == "" || req.UserID == "" {
		return model.Invalid("Missing eventId or userId.")
	}
	return nil
}
