package models

import "time"

// PaymentStatus mirrors the values reported by the payment flow.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

// Payment records one processing-fee attempt for a publication.
// Payments are never deleted.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	PublicationID string        `db:"publication_id" json:"publication_id"`
	UserID        string        `db:"user_id" json:"user_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Currency      string        `db:"currency" json:"currency"`
	Method        string        `db:"method" json:"method"`
	Status        PaymentStatus `db:"status" json:"status"`
	CustomerName  string        `db:"customer_name" json:"customer_name"`
	CustomerEmail string        `db:"customer_email" json:"customer_email"`
	Reason        string        `db:"reason" json:"reason"`
	Reference     string        `db:"reference" json:"reference"`
	OrderNo       string        `db:"order_no" json:"order_no"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter captures listing criteria for payments.
type PaymentFilter struct {
	Status        *PaymentStatus
	UserID        string
	PublicationID string
	Page          int
	PageSize      int
}
