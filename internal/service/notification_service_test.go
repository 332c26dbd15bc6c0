package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/mailer"
)

type mockNotificationRepo struct {
	notifications []models.Notification
	markReadErr   error
	unread        int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockNotificationRepo) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	m.notifications = append(m.notifications, notifications...)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return m.notifications, len(m.notifications), nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	return m.markReadErr
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

type mockSecurityLogRepo struct {
	entries []*models.SecurityLog
}

func (m *mockSecurityLogRepo) Create(ctx context.Context, log *models.SecurityLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func (m *mockSecurityLogRepo) ListRecent(ctx context.Context, limit int) ([]models.SecurityLog, error) {
	out := make([]models.SecurityLog, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out, nil
}

type mockMailer struct {
	sent []mailer.Message
	err  error
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var referencePattern = regexp.MustCompile(`^(NTF|PAY)-[0-9a-f]{12}$`)

func TestReferenceCodeFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := NewNotificationReference()
		assert.Regexp(t, referencePattern, ref)
		assert.False(t, seen[ref], "reference %s repeated", ref)
		seen[ref] = true
	}
	assert.Regexp(t, referencePattern, NewPaymentReference())
}

func newTestNotificationService(repo *mockNotificationRepo, security *mockSecurityLogRepo, mail *mockMailer) *NotificationService {
	admins := &mockAdminDirectory{admins: []models.User{
		{ID: "admin-1", Email: "admin@example.edu", Role: models.RoleAdmin, Active: true},
	}}
	return NewNotificationService(repo, security, admins, mail, nil, zap.NewNop())
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	svc := newTestNotificationService(&mockNotificationRepo{markReadErr: sql.ErrNoRows}, &mockSecurityLogRepo{}, &mockMailer{})

	err := svc.MarkRead(context.Background(), "ntf-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceSendEmailValidates(t *testing.T) {
	mail := &mockMailer{}
	svc := newTestNotificationService(&mockNotificationRepo{}, &mockSecurityLogRepo{}, mail)

	err := svc.SendEmail(context.Background(), SendEmailRequest{Recipients: []string{"not-an-email"}, Subject: "s", HTMLBody: "b"})
	require.Error(t, err)
	assert.Empty(t, mail.sent)

	err = svc.SendEmail(context.Background(), SendEmailRequest{
		Recipients: []string{"someone@example.edu"},
		Subject:    "Announcement",
		HTMLBody:   "<p>Hello</p>",
	})
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"someone@example.edu"}, mail.sent[0].Recipients)
}

func TestNotificationServiceSecurityAlert(t *testing.T) {
	repo := &mockNotificationRepo{}
	security := &mockSecurityLogRepo{}
	mail := &mockMailer{}
	svc := newTestNotificationService(repo, security, mail)

	err := svc.SecurityAlert(context.Background(), SecurityAlertRequest{
		Event:  "REPEATED_LOGIN_FAILURE",
		Detail: "5 failed attempts for admin@example.edu",
		IP:     "203.0.113.7",
	})
	require.NoError(t, err)
	require.Len(t, security.entries, 1)
	assert.Equal(t, "REPEATED_LOGIN_FAILURE", security.entries[0].Event)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, models.NotificationSecurityAlert, repo.notifications[0].Type)
	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].Subject, "REPEATED_LOGIN_FAILURE")
}

func TestNotificationServiceSecurityAlertSurvivesMailFailure(t *testing.T) {
	repo := &mockNotificationRepo{}
	security := &mockSecurityLogRepo{}
	mail := &mockMailer{err: assert.AnError}
	svc := newTestNotificationService(repo, security, mail)

	err := svc.SecurityAlert(context.Background(), SecurityAlertRequest{Event: "TOKEN_REUSE", Detail: "revoked refresh token replayed"})
	require.NoError(t, err)
	require.Len(t, security.entries, 1)
	require.Len(t, repo.notifications, 1)
}

func TestNotificationServiceCountUnread(t *testing.T) {
	svc := newTestNotificationService(&mockNotificationRepo{unread: 3}, &mockSecurityLogRepo{}, &mockMailer{})

	total, err := svc.CountUnread(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}
