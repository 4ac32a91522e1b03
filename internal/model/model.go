// Package model defines the domain types of the event membership service:
// events, profiles, membership records and notifications.
package model

import "time"

// Event represents a bookable event created by a host.
type Event struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Address         string     `json:"address"`
	Category        string     `json:"category"`
	HostID          string     `json:"host_id"`
	HostName        string     `json:"host_name"`
	MaxPeople       int        `json:"max_people"`
	PricePerPerson  *float64   `json:"price_per_person,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
	EndTimeMillis   int64      `json:"end_time_millis"`
	ExpireAt        *time.Time `json:"expire_at,omitempty"`
	ChatFrozen      bool       `json:"chat_frozen"`
	ChatGroupID     string     `json:"chat_group_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// EndTime returns the moment the event finishes.
func (e *Event) EndTime() time.Time {
	return time.UnixMilli(e.EndTimeMillis).UTC()
}

// ComputeEnd derives EndTimeMillis from the start and duration.
func (e *Event) ComputeEnd() {
	e.EndTimeMillis = e.StartAt.Add(time.Duration(e.DurationMinutes) * time.Minute).UnixMilli()
}

// IsFull reports whether participantCount has reached the capacity.
func (e *Event) IsFull(participantCount int) bool {
	return participantCount >= e.MaxPeople
}

// EventView is an event together with its current participant count.
type EventView struct {
	Event
	ParticipantCount int  `json:"participant_count"`
	Full             bool `json:"is_full"`
}

// UserProfile is the account data the reconciler copies into membership records.
type UserProfile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	Age             int    `json:"age"`
	ProfileImageURL string `json:"profile_image_url"`
	PhoneNumber     string `json:"phone_number,omitempty"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Address         string     `json:"address"`
	Category        string     `json:"category"`
	MaxPeople       int        `json:"max_people"`
	PricePerPerson  *float64   `json:"price_per_person,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
	ExpireAt        *time.Time `json:"expire_at,omitempty"`
	ChatGroupID     string     `json:"chat_group_id,omitempty"`
}

// UpdateEventRequest is the payload for the host's edit operation.
// Nil fields are left untouched.
type UpdateEventRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Address         *string    `json:"address,omitempty"`
	MaxPeople       *int       `json:"max_people,omitempty"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	ChatGroupID     *string    `json:"chat_group_id,omitempty"`
}

// FriendRequest carries the friend's name for plus-one operations.
type FriendRequest struct {
	FriendName string `json:"friend_name"`
}

// ChatMemberRequest is the payload of the chat membership endpoints.
type ChatMemberRequest struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// OperationResponse is the JSON envelope for membership operations.
type OperationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	State   State  `json:"state,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
