// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store layer.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

const (
	maxCapacity = 100_000

	// Events are kept for two weeks after they end.
	expireAfterEnd = 14 * 24 * time.Hour
)

// EventService orchestrates event and profile operations.
type EventService struct {
	events   store.Events
	members  store.Membership
	profiles store.Profiles
	now      func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events store.Events, members store.Membership, profiles store.Profiles) *EventService {
	return &EventService{
		events:   events,
		members:  members,
		profiles: profiles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent validates the request and stores a new event hosted by hostID.
func (s *EventService) CreateEvent(ctx context.Context, hostID string, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, model.Invalid("title is required")
	}
	if err := validateCapacity(req.MaxPeople); err != nil {
		return nil, err
	}
	if req.StartAt.IsZero() {
		return nil, model.Invalid("start_at is required")
	}
	if req.DurationMinutes < 0 {
		return nil, model.Invalid("duration_minutes cannot be negative")
	}

	hostName := ""
	if p, err := s.profiles.GetProfile(ctx, hostID); err == nil {
		hostName = p.Name
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, model.Failed(err, "failed to load host profile")
	}

	event := &model.Event{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		Address:         req.Address,
		Category:        req.Category,
		HostID:          hostID,
		HostName:        hostName,
		MaxPeople:       req.MaxPeople,
		PricePerPerson:  req.PricePerPerson,
		StartAt:         req.StartAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		ExpireAt:        req.ExpireAt,
		ChatGroupID:     req.ChatGroupID,
		CreatedAt:       s.now(),
	}
	refreshLifecycle(event, req.ExpireAt == nil)

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, model.Failed(err, "failed to create event")
	}
	return event, nil
}

// ListEvents returns all events with their participant counts.
func (s *EventService) ListEvents(ctx context.Context) ([]model.EventView, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, model.Failed(err, "failed to list events")
	}
	views := make([]model.EventView, 0, len(events))
	for i := range events {
		view, err := s.view(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventView, error) {
	if id == "" {
		return nil, model.Invalid("event id is required")
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.Fail(model.ErrNotFound, "event not found")
		}
		return nil, model.Failed(err, "failed to get event")
	}
	return s.view(ctx, event)
}

// UpdateEvent applies the host's edits. The end time and expiry are
// recomputed when the schedule changes.
func (s *EventService) UpdateEvent(ctx context.Context, hostID, id string, req model.UpdateEventRequest) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.Fail(model.ErrNotFound, "event not found")
		}
		return nil, model.Failed(err, "failed to get event")
	}
	if event.HostID != hostID {
		return nil, model.Fail(model.ErrForbidden, "only the host can edit this event")
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, model.Invalid("title is required")
		}
		event.Title = title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Address != nil {
		event.Address = *req.Address
	}
	if req.MaxPeople != nil {
		if err := validateCapacity(*req.MaxPeople); err != nil {
			return nil, err
		}
		event.MaxPeople = *req.MaxPeople
	}
	if req.ChatGroupID != nil {
		event.ChatGroupID = *req.ChatGroupID
	}

	rescheduled := false
	if req.StartAt != nil {
		event.StartAt = req.StartAt.UTC()
		rescheduled = true
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes < 0 {
			return nil, model.Invalid("duration_minutes cannot be negative")
		}
		event.DurationMinutes = *req.DurationMinutes
		rescheduled = true
	}
	if rescheduled {
		refreshLifecycle(event, true)
		event.ChatFrozen = false
	}

	if err := s.events.UpdateEvent(ctx, event); err != nil {
		return nil, model.Failed(err, "failed to update event")
	}
	return event, nil
}

// GetProfile returns a user profile.
func (s *EventService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.Fail(model.ErrNotFound, "user not found")
		}
		return nil, model.Failed(err, "failed to get profile")
	}
	return p, nil
}

// SaveProfile creates or replaces the caller's own profile.
func (s *EventService) SaveProfile(ctx context.Context, callerID, userID string, p model.UserProfile) (*model.UserProfile, error) {
	if callerID != userID {
		return nil, model.Fail(model.ErrForbidden, "you can only edit your own profile")
	}
	p.ID = userID
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, model.Invalid("name is required")
	}
	if p.Age < 0 {
		return nil, model.Invalid("age cannot be negative")
	}
	if err := s.profiles.UpsertProfile(ctx, &p); err != nil {
		return nil, model.Failed(err, "failed to save profile")
	}
	return &p, nil
}

func (s *EventService) view(ctx context.Context, event *model.Event) (*model.EventView, error) {
	count, err := s.members.Count(ctx, event.ID, model.KindParticipant)
	if err != nil {
		return nil, model.Failed(err, "failed to count participants")
	}
	return &model.EventView{
		Event:            *event,
		ParticipantCount: count,
		Full:             event.IsFull(count),
	}, nil
}

func validateCapacity(n int) error {
	if n <= 0 {
		return model.Invalid("max_people must be a positive integer")
	}
	if n > maxCapacity {
		return model.Invalid("max_people cannot exceed 100,000")
	}
	return nil
}

// refreshLifecycle recomputes the end time and, if asked, the expiry.
func refreshLifecycle(e *model.Event, resetExpiry bool) {
	e.ComputeEnd()
	if resetExpiry {
		expire := e.EndTime().Add(expireAfterEnd)
		e.ExpireAt = &expire
	}
}
