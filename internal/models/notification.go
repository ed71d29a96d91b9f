package models

import "time"

// NotificationType tags the event a notification describes.
type NotificationType string

// Notification type tags.
const (
	NotificationStatusChanged NotificationType = "application_status_changed"
	NotificationPromoted      NotificationType = "waitlist_promoted"
	NotificationConfirmed     NotificationType = "admission_confirmed"
)

// Notification is a user-facing message record. Created here, consumed by
// the delivery pipeline; never mutated by this service.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	UserType      string           `db:"user_type" json:"user_type"`
	Type          NotificationType `db:"type" json:"type"`
	Message       string           `db:"message" json:"message"`
	ApplicationID *string          `db:"application_id" json:"application_id,omitempty"`
	Read          bool             `db:"read" json:"read"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}
