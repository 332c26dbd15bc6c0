package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/repository"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/jobs"
	"github.com/noah-isme/pubdesk-api/pkg/mailer"
	"github.com/noah-isme/pubdesk-api/pkg/paygate"
)

type paymentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	FindByPublication(ctx context.Context, publicationID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	MarkCompleted(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	SumCompleted(ctx context.Context) (float64, error)
}

type notificationBatchWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

type paymentGateway interface {
	Lookup(ctx context.Context, reference, orderNo string) (*paygate.StatusResult, error)
}

// PaymentPollConfig bounds gateway reconciliation polling.
type PaymentPollConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// ManualPaymentRequest records an out-of-band payment made for a publication.
type ManualPaymentRequest struct {
	PublicationID string  `json:"publication_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Method        string  `json:"method" validate:"required"`
	Reason        string  `json:"reason"`
}

// PaymentService manages processing-fee payments: listing, manual entry,
// completion and gateway reconciliation.
type PaymentService struct {
	repo          paymentRepository
	notifications notificationBatchWriter
	users         adminDirectory
	gateway       paymentGateway
	mailQueue     jobEnqueuer
	reconcile     jobEnqueuer
	changes       changeNotifier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	poll          PaymentPollConfig
	currency      string
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(
	repo paymentRepository,
	notifications notificationBatchWriter,
	users adminDirectory,
	gateway paymentGateway,
	mailQueue jobEnqueuer,
	changes changeNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	poll PaymentPollConfig,
	currency string,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = 5
	}
	if poll.BaseDelay <= 0 {
		poll.BaseDelay = 2 * time.Second
	}
	return &PaymentService{
		repo:          repo,
		notifications: notifications,
		users:         users,
		gateway:       gateway,
		mailQueue:     mailQueue,
		changes:       changes,
		validator:     validate,
		logger:        logger,
		poll:          poll,
		currency:      currency,
	}
}

// SetReconcileQueue wires the background queue used for reconciliation runs.
// The queue's handler dispatches back into Reconcile, so it is attached
// after construction.
func (s *PaymentService) SetReconcileQueue(queue jobEnqueuer) {
	s.reconcile = queue
}

// SetMetrics attaches the Prometheus collectors fed on payment settlement.
func (s *PaymentService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Get returns a payment. Non-admins only see their own payments.
func (s *PaymentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if claims.Role != models.RoleAdmin && payment.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this payment")
	}
	return payment, nil
}

// List returns payments scoped to the caller's role.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter, claims *models.JWTClaims) ([]models.Payment, int, error) {
	if claims.Role != models.RoleAdmin {
		filter.UserID = claims.UserID
	}
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, total, nil
}

// RecordManual stores an out-of-band payment entry and immediately
// completes it. Admin only.
func (s *PaymentService) RecordManual(ctx context.Context, req ManualPaymentRequest, claims *models.JWTClaims) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual payment payload")
	}

	payment := &models.Payment{
		PublicationID: req.PublicationID,
		UserID:        claims.UserID,
		Amount:        req.Amount,
		Currency:      s.currency,
		Method:        req.Method,
		Status:        models.PaymentPending,
		Reason:        req.Reason,
		Reference:     NewPaymentReference(),
		OrderNo:       NewPaymentReference(),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if err := s.Complete(ctx, payment.ID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, payment.ID)
}

// Complete flips a payment to completed and, only when this call performed
// the flip, notifies every admin that the manuscript is ready for routing.
func (s *PaymentService) Complete(ctx context.Context, id string) error {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	flipped, err := s.repo.MarkCompleted(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete payment")
	}
	if !flipped {
		return nil
	}
	payment.Status = models.PaymentCompleted

	s.metrics.ObservePayment(string(models.PaymentCompleted))
	s.notifyAdmins(ctx, payment)
	s.afterWrite(ctx, payment)
	return nil
}

// QueueReconcile schedules a background reconciliation run for a payment.
func (s *PaymentService) QueueReconcile(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if s.reconcile == nil {
		return appErrors.Clone(appErrors.ErrInternal, "reconciliation queue is not configured")
	}
	if err := s.reconcile.Enqueue(jobs.Job{Type: "payment_reconcile", Payload: id}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue reconciliation")
	}
	return nil
}

// Reconcile polls the payment gateway until the payment settles or the
// attempt budget runs out. Delays grow exponentially from the base delay.
// A payment still pending after the last attempt is left untouched.
func (s *PaymentService) Reconcile(ctx context.Context, id string) error {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status == models.PaymentCompleted {
		return nil
	}

	for attempt := 0; attempt < s.poll.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.poll.BaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := s.gateway.Lookup(ctx, payment.Reference, payment.OrderNo)
		if err != nil {
			s.logger.Warn("gateway lookup failed",
				zap.String("payment_id", id),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		switch result.Status {
		case paygate.StatusCompleted:
			return s.Complete(ctx, id)
		case paygate.StatusFailed:
			if err := s.repo.MarkFailed(ctx, id); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment failed")
			}
			payment.Status = models.PaymentFailed
			s.metrics.ObservePayment(string(models.PaymentFailed))
			s.afterWrite(ctx, payment)
			return nil
		}
	}

	s.logger.Info("payment still pending after reconciliation",
		zap.String("payment_id", id),
		zap.Int("attempts", s.poll.MaxAttempts))
	return nil
}

func (s *PaymentService) notifyAdmins(ctx context.Context, payment *models.Payment) {
	admins, err := s.users.FindByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Warn("failed to load admins for payment notification", zap.Error(err))
		return
	}
	adminIDs := make([]string, 0, len(admins))
	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		adminIDs = append(adminIDs, admin.ID)
		recipients = append(recipients, admin.Email)
	}

	if err := s.notifications.CreateBatch(ctx, paymentCompletedNotifications(payment, adminIDs)); err != nil {
		s.logger.Warn("failed to store payment notifications", zap.Error(err))
	}

	if s.mailQueue != nil && len(recipients) > 0 {
		job := jobs.Job{
			Type: "email",
			Payload: mailer.Message{
				Recipients: recipients,
				Subject:    "Payment completed",
				HTMLBody: fmt.Sprintf("<p>Payment <strong>%s</strong> (%s %.2f) for publication %s is completed.</p><p>The manuscript can now be routed for review.</p>",
					payment.Reference, payment.Currency, payment.Amount, payment.PublicationID),
			},
		}
		if err := s.mailQueue.Enqueue(job); err != nil {
			s.logger.Warn("failed to queue payment email", zap.Error(err))
		} else {
			s.metrics.ObserveEmailQueued()
		}
	}
}

func (s *PaymentService) afterWrite(ctx context.Context, payment *models.Payment) {
	if s.changes == nil {
		return
	}
	if err := s.changes.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
	s.changes.PublishChange(ctx, repository.ChangeEvent{Table: "payments", ID: payment.ID})
}
