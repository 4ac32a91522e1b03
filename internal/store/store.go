// Package store declares the persistence contracts the service layer depends
// on. The repository package implements them on PostgreSQL and the memstore
// package implements them in memory.
package store

import (
	"context"
	"time"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// Membership is durable per-event keyed storage of membership records.
//
// Lookups of absent records return (nil, nil). Put fails with
// model.ErrNotFound when the event is unknown. Delete of an absent record is a
// no-op. There is no cross-record transaction unless the caller uses
// Atomically.
type Membership interface {
	// Get returns the user's JoinRequest, Participant or WaitlistEntry,
	// whichever exists.
	Get(ctx context.Context, eventID, userID string) (*model.Record, error)
	Lookup(ctx context.Context, eventID string, kind model.Kind, key string) (*model.Record, error)
	List(ctx context.Context, eventID string, kind model.Kind) ([]model.Record, error)
	Put(ctx context.Context, eventID string, rec model.Record) error
	Delete(ctx context.Context, eventID string, kind model.Kind, key string) error
	Count(ctx context.Context, eventID string, kind model.Kind) (int, error)

	// Atomically runs fn with exclusive access to the event's membership.
	// Writes made through the Membership passed to fn commit together.
	Atomically(ctx context.Context, eventID string, fn func(Membership) error) error
}

// Subscriber streams committed membership changes for one event. The channel
// closes when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, eventID string) (<-chan model.Change, error)
}

// Events persists events.
type Events interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, event *model.Event) error

	// ListChatFreezeDue returns unfrozen events that ended before cutoff.
	ListChatFreezeDue(ctx context.Context, cutoff time.Time) ([]model.Event, error)
	MarkChatFrozen(ctx context.Context, id string) error
}

// Profiles persists user profiles. Get returns model.ErrNotFound when absent.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *model.UserProfile) error
}

// Notifications persists per-user notification records.
type Notifications interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)

	// DeleteNotificationsBefore removes records created before cutoff and
	// returns how many were removed.
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
