package model

import "time"

// Notification types emitted by the membership workflow.
const (
	NotifyJoinRequest      = "join_request"
	NotifyJoinAccepted     = "join_accepted"
	NotifyWithdrawRequest  = "withdraw_request"
	NotifyWithdrawAccepted = "withdraw_accepted"
	NotifyWithdrawRejected = "withdraw_rejected"
	NotifyPlusOneRequest   = "plus_one_request"
	NotifyPlusOneApproved  = "plus_one_approved"
	NotifyPlusOneRejected  = "plus_one_rejected"
	NotifyKicked           = "kicked"
)

// NotificationInput is the createNotification payload.
type NotificationInput struct {
	ToUserID string `json:"to_user_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	EventID  string `json:"event_id"`
}

// Notification is a stored per-user notification record.
type Notification struct {
	ID        string    `json:"id"`
	ToUserID  string    `json:"to_user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expiry"`
	IsRead    bool      `json:"is_read"`
}
