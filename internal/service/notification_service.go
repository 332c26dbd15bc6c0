package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/mailer"
)

// newReference builds a unique human-quotable reference code such as
// NTF-3f2a91b04c7d. The 12 hex characters come from a fresh UUID, so
// codes never repeat in practice.
func newReference(prefix string) string {
	fragment := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "-" + fragment
}

// NewNotificationReference returns a reference code for notification rows.
func NewNotificationReference() string { return newReference("NTF") }

// NewPaymentReference returns a reference code for payment rows.
func NewPaymentReference() string { return newReference("PAY") }

// Notification templates per lifecycle event. The builders return fully
// populated rows ready for the transactional inserts.

func submissionConfirmedNotification(pub *models.Publication, payment *models.Payment) models.Notification {
	return models.Notification{
		UserID:        pub.OwnerID,
		Type:          models.NotificationSubmissionConfirmed,
		Title:         "Submission received",
		Message:       fmt.Sprintf("Your manuscript %q was received. Complete the processing fee payment (%s %.2f) to enter review.", pub.Title, payment.Currency, payment.Amount),
		PublicationID: &pub.ID,
		PaymentID:     &payment.ID,
		Reference:     NewNotificationReference(),
	}
}

func reviewRequestedNotifications(pub *models.Publication, reviewerIDs []string) []models.Notification {
	notifications := make([]models.Notification, 0, len(reviewerIDs))
	for _, reviewerID := range reviewerIDs {
		notifications = append(notifications, models.Notification{
			UserID:        reviewerID,
			Type:          models.NotificationReviewRequested,
			Title:         "Review requested",
			Message:       fmt.Sprintf("The manuscript %q has been assigned to you for review.", pub.Title),
			PublicationID: &pub.ID,
			Reference:     NewNotificationReference(),
		})
	}
	return notifications
}

func reviewCompletedNotification(pub *models.Publication, decision models.ReviewerDecision) models.Notification {
	return models.Notification{
		UserID:        pub.OwnerID,
		Type:          models.NotificationReviewCompleted,
		Title:         "Review completed",
		Message:       fmt.Sprintf("The review of your manuscript %q is complete with verdict %s.", pub.Title, decision),
		PublicationID: &pub.ID,
		Reference:     NewNotificationReference(),
	}
}

func publicationFinalizedNotification(pub *models.Publication, target models.PublicationStatus) models.Notification {
	message := fmt.Sprintf("Your manuscript %q has been rejected.", pub.Title)
	if target == models.StatusPublished {
		message = fmt.Sprintf("Congratulations, your manuscript %q has been published.", pub.Title)
	}
	return models.Notification{
		UserID:        pub.OwnerID,
		Type:          models.NotificationReviewCompleted,
		Title:         fmt.Sprintf("Manuscript %s", target.Label()),
		Message:       message,
		PublicationID: &pub.ID,
		Reference:     NewNotificationReference(),
	}
}

func paymentCompletedNotifications(payment *models.Payment, adminIDs []string) []models.Notification {
	notifications := make([]models.Notification, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		notifications = append(notifications, models.Notification{
			UserID:        adminID,
			Type:          models.NotificationPaymentCompleted,
			Title:         "Payment completed",
			Message:       fmt.Sprintf("Payment %s (%s %.2f) for publication %s is completed. The manuscript is ready to be routed for review.", payment.Reference, payment.Currency, payment.Amount, payment.PublicationID),
			PublicationID: &payment.PublicationID,
			PaymentID:     &payment.ID,
			Reference:     NewNotificationReference(),
		})
	}
	return notifications
}

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

type securityLogRepository interface {
	Create(ctx context.Context, log *models.SecurityLog) error
	ListRecent(ctx context.Context, limit int) ([]models.SecurityLog, error)
}

type adminDirectory interface {
	FindByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type emailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// SendEmailRequest is a raw outbound email payload.
type SendEmailRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required"`
	HTMLBody   string   `json:"html_body" validate:"required"`
}

// SecurityAlertRequest reports a security-relevant event.
type SecurityAlertRequest struct {
	Event     string `json:"event" validate:"required"`
	Detail    string `json:"detail" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
	UserID    string `json:"-"`
}

// NotificationService handles in-app notifications, the email proxy and
// security alerts.
type NotificationService struct {
	repo      notificationRepository
	security  securityLogRepository
	users     adminDirectory
	mail      emailSender
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationRepository, security securityLogRepository, users adminDirectory, mail emailSender, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{repo: repo, security: security, users: users, mail: mail, validator: validate, logger: logger}
}

// List returns the caller's notifications newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	notifications, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, total, nil
}

// MarkRead flips the read flag on one of the caller's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// CountUnread returns the caller's unread notification count.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	total, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return total, nil
}

// SendEmail relays a raw email through the external mail API.
func (s *NotificationService) SendEmail(ctx context.Context, req SendEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}
	if err := s.mail.Send(ctx, mailer.Message{
		Recipients: req.Recipients,
		Subject:    req.Subject,
		HTMLBody:   req.HTMLBody,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send email")
	}
	return nil
}

// SecurityAlert records a security log entry and notifies every admin both
// in-app and by email.
func (s *NotificationService) SecurityAlert(ctx context.Context, req SecurityAlertRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid security alert payload")
	}

	entry := &models.SecurityLog{
		Event:     req.Event,
		Detail:    req.Detail,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}
	if req.UserID != "" {
		entry.UserID = &req.UserID
	}
	if err := s.security.Create(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record security log")
	}

	admins, err := s.users.FindByRole(ctx, models.RoleAdmin)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admins")
	}

	notifications := make([]models.Notification, 0, len(admins))
	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		notifications = append(notifications, models.Notification{
			UserID:    admin.ID,
			Type:      models.NotificationSecurityAlert,
			Title:     "Security alert",
			Message:   fmt.Sprintf("%s: %s", req.Event, req.Detail),
			Reference: NewNotificationReference(),
		})
		recipients = append(recipients, admin.Email)
	}
	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store alert notifications")
	}

	if len(recipients) > 0 && s.mail != nil {
		if err := s.mail.Send(ctx, mailer.Message{
			Recipients: recipients,
			Subject:    fmt.Sprintf("Security alert: %s", req.Event),
			HTMLBody:   fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p><p>IP: %s</p>", req.Event, req.Detail, req.IP),
		}); err != nil {
			s.logger.Warn("failed to email security alert", zap.Error(err))
		}
	}

	return nil
}

// RecentSecurityLogs lists the latest security log entries for admins.
func (s *NotificationService) RecentSecurityLogs(ctx context.Context, limit int) ([]models.SecurityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := s.security.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list security logs")
	}
	return logs, nil
}
