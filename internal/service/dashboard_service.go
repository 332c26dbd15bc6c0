package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type dashboardPublicationReader interface {
	List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.PublicationStatus]int, error)
}

type dashboardPaymentReader interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	SumCompleted(ctx context.Context) (float64, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

// StatusCount pairs a status with its count and presentation metadata.
type StatusCount struct {
	Status models.PublicationStatus `json:"status"`
	Label  string                   `json:"label"`
	Count  int                      `json:"count"`
}

// AuthorDashboard summarises an author's submissions.
type AuthorDashboard struct {
	Submissions     []StatusCount `json:"submissions"`
	TotalSubmitted  int           `json:"total_submitted"`
	PendingPayments int           `json:"pending_payments"`
	UnreadCount     int           `json:"unread_count"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// ReviewerDashboard summarises a reviewer's queue.
type ReviewerDashboard struct {
	AssignedActive   int       `json:"assigned_active"`
	CompletedReviews int       `json:"completed_reviews"`
	UnreadCount      int       `json:"unread_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// AdminDashboard summarises platform state for admins.
type AdminDashboard struct {
	Publications    []StatusCount `json:"publications"`
	PendingPayments int           `json:"pending_payments"`
	TotalRevenue    float64       `json:"total_revenue"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// DashboardService aggregates role dashboards with a Redis cache in front.
// Cache entries are invalidated on every lifecycle write, and the SSE
// change feed tells connected clients to re-fetch.
type DashboardService struct {
	publications  dashboardPublicationReader
	payments      dashboardPaymentReader
	notifications unreadCounter
	cache         dashboardCache
	logger        *zap.Logger
	ttl           time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(
	publications dashboardPublicationReader,
	payments dashboardPaymentReader,
	notifications unreadCounter,
	cache dashboardCache,
	logger *zap.Logger,
	ttl time.Duration,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardService{
		publications:  publications,
		payments:      payments,
		notifications: notifications,
		cache:         cache,
		logger:        logger,
		ttl:           ttl,
	}
}

// Author builds the author dashboard, serving from cache when fresh.
func (s *DashboardService) Author(ctx context.Context, userID string) (*AuthorDashboard, error) {
	key := fmt.Sprintf("dashboard:author:%s", userID)
	var cached AuthorDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	counts, err := s.publications.CountByStatus(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}

	pendingStatus := models.PaymentPending
	_, pendingPayments, err := s.payments.List(ctx, models.PaymentFilter{UserID: userID, Status: &pendingStatus, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending payments")
	}

	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}

	dash := &AuthorDashboard{
		Submissions:     statusCounts(counts),
		TotalSubmitted:  totalCount(counts),
		PendingPayments: pendingPayments,
		UnreadCount:     unread,
		GeneratedAt:     time.Now().UTC(),
	}
	s.cacheSet(ctx, key, dash)
	return dash, nil
}

// Reviewer builds the reviewer dashboard, serving from cache when fresh.
func (s *DashboardService) Reviewer(ctx context.Context, userID string) (*ReviewerDashboard, error) {
	key := fmt.Sprintf("dashboard:reviewer:%s", userID)
	var cached ReviewerDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	active := models.StatusUnderReview
	_, assigned, err := s.publications.List(ctx, models.PublicationFilter{ReviewerID: userID, Status: &active, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}

	reviewed := models.StatusReviewed
	_, completed, err := s.publications.List(ctx, models.PublicationFilter{ReviewerID: userID, Status: &reviewed, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed reviews")
	}

	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}

	dash := &ReviewerDashboard{
		AssignedActive:   assigned,
		CompletedReviews: completed,
		UnreadCount:      unread,
		GeneratedAt:      time.Now().UTC(),
	}
	s.cacheSet(ctx, key, dash)
	return dash, nil
}

// Admin builds the platform-wide dashboard, serving from cache when fresh.
func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	const key = "dashboard:admin"
	var cached AdminDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	counts, err := s.publications.CountByStatus(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count publications")
	}

	pendingStatus := models.PaymentPending
	_, pendingPayments, err := s.payments.List(ctx, models.PaymentFilter{Status: &pendingStatus, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending payments")
	}

	revenue, err := s.payments.SumCompleted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum revenue")
	}

	dash := &AdminDashboard{
		Publications:    statusCounts(counts),
		PendingPayments: pendingPayments,
		TotalRevenue:    revenue,
		GeneratedAt:     time.Now().UTC(),
	}
	s.cacheSet(ctx, key, dash)
	return dash, nil
}

func (s *DashboardService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *DashboardService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func statusCounts(counts map[models.PublicationStatus]int) []StatusCount {
	out := make([]StatusCount, 0, len(models.AllPublicationStatuses))
	for _, status := range models.AllPublicationStatuses {
		if status == models.StatusDeleted {
			continue
		}
		out = append(out, StatusCount{Status: status, Label: status.Label(), Count: counts[status]})
	}
	return out
}

func totalCount(counts map[models.PublicationStatus]int) int {
	total := 0
	for status, n := range counts {
		if status == models.StatusDeleted {
			continue
		}
		total += n
	}
	return total
}
