package models

import "time"

// NotificationType selects the message template for a lifecycle event.
type NotificationType string

const (
	NotificationSubmissionConfirmed NotificationType = "SUBMISSION_CONFIRMED"
	NotificationPaymentCompleted    NotificationType = "PAYMENT_COMPLETED"
	NotificationReviewRequested     NotificationType = "REVIEW_REQUESTED"
	NotificationReviewCompleted     NotificationType = "REVIEW_COMPLETED"
	NotificationSecurityAlert       NotificationType = "SECURITY_ALERT"
)

// Notification is an in-app record of a lifecycle event. Rows are created
// alongside the state transition and only ever mutated to flip Read.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	Type          NotificationType `db:"type" json:"type"`
	Title         string           `db:"title" json:"title"`
	Message       string           `db:"message" json:"message"`
	PublicationID *string          `db:"publication_id" json:"publication_id,omitempty"`
	PaymentID     *string          `db:"payment_id" json:"payment_id,omitempty"`
	Read          bool             `db:"read" json:"read"`
	Reference     string           `db:"reference" json:"reference"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures listing criteria for a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
