package models

import (
	"time"

	"github.com/lib/pq"
)

// PublicationStatus tracks a manuscript through the review pipeline.
type PublicationStatus string

const (
	StatusPending     PublicationStatus = "PENDING"
	StatusUnderReview PublicationStatus = "UNDER_REVIEW"
	StatusReviewed    PublicationStatus = "REVIEWED"
	StatusPublished   PublicationStatus = "PUBLISHED"
	StatusRejected    PublicationStatus = "REJECTED"
	StatusDeleted     PublicationStatus = "DELETED"
)

// AllPublicationStatuses lists every status in pipeline order.
var AllPublicationStatuses = []PublicationStatus{
	StatusPending,
	StatusUnderReview,
	StatusReviewed,
	StatusPublished,
	StatusRejected,
	StatusDeleted,
}

var statusLabels = map[PublicationStatus]string{
	StatusPending:     "Pending",
	StatusUnderReview: "Under Review",
	StatusReviewed:    "Reviewed",
	StatusPublished:   "Published",
	StatusRejected:    "Rejected",
	StatusDeleted:     "Deleted",
}

var statusClasses = map[PublicationStatus]string{
	StatusPending:     "badge-warning",
	StatusUnderReview: "badge-info",
	StatusReviewed:    "badge-primary",
	StatusPublished:   "badge-success",
	StatusRejected:    "badge-danger",
	StatusDeleted:     "badge-muted",
}

// Label returns the human-readable name for the status.
func (s PublicationStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// StyleClass returns the UI badge class for the status.
func (s PublicationStatus) StyleClass() string {
	if class, ok := statusClasses[s]; ok {
		return class
	}
	return "badge-muted"
}

// Terminal reports whether the status permits no further transitions.
func (s PublicationStatus) Terminal() bool {
	switch s {
	case StatusPublished, StatusRejected, StatusDeleted:
		return true
	default:
		return false
	}
}

var legalTransitions = map[PublicationStatus][]PublicationStatus{
	StatusPending:     {StatusUnderReview, StatusDeleted},
	StatusUnderReview: {StatusReviewed, StatusDeleted},
	StatusReviewed:    {StatusPublished, StatusRejected, StatusDeleted},
}

// CanTransition reports whether moving from s to target is a legal step.
func (s PublicationStatus) CanTransition(target PublicationStatus) bool {
	for _, next := range legalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ReviewerDecision is a reviewer's verdict on a manuscript.
type ReviewerDecision string

const (
	DecisionAccepted ReviewerDecision = "ACCEPTED"
	DecisionRejected ReviewerDecision = "REJECTED"
)

// Publication represents a submitted manuscript row.
type Publication struct {
	ID               string            `db:"id" json:"id"`
	Title            string            `db:"title" json:"title"`
	Authors          pq.StringArray    `db:"authors" json:"authors"`
	Abstract         string            `db:"abstract" json:"abstract"`
	Keywords         pq.StringArray    `db:"keywords" json:"keywords"`
	Category         string            `db:"category" json:"category"`
	Type             string            `db:"pub_type" json:"type"`
	DocumentPath     string            `db:"document_path" json:"-"`
	DocumentURL      string            `db:"document_url" json:"document_url"`
	OwnerID          string            `db:"owner_id" json:"owner_id"`
	ReviewerIDs      pq.StringArray    `db:"reviewer_ids" json:"reviewer_ids"`
	ReviewerDecision *ReviewerDecision `db:"reviewer_decision" json:"reviewer_decision,omitempty"`
	ReviewComments   *string           `db:"review_comments" json:"review_comments,omitempty"`
	ReviewedAt       *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Status           PublicationStatus `db:"status" json:"status"`
	Version          int               `db:"version" json:"version"`
	DeletedAt        *time.Time        `db:"deleted_at" json:"-"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// PublicationFilter captures listing criteria. Soft-deleted rows are always
// excluded regardless of the filter.
type PublicationFilter struct {
	Status     *PublicationStatus
	OwnerID    string
	ReviewerID string
	Category   string
	Search     string
	PublicOnly bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// StatusInfo pairs a status value with its presentation metadata.
type StatusInfo struct {
	Value      PublicationStatus `json:"value"`
	Label      string            `json:"label"`
	StyleClass string            `json:"style_class"`
}

// StatusCatalog returns presentation metadata for every status value.
func StatusCatalog() []StatusInfo {
	catalog := make([]StatusInfo, 0, len(AllPublicationStatuses))
	for _, s := range AllPublicationStatuses {
		catalog = append(catalog, StatusInfo{Value: s, Label: s.Label(), StyleClass: s.StyleClass()})
	}
	return catalog
}
