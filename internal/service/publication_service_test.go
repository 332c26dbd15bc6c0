package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/repository"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/jobs"
)

type mockPublicationRepo struct {
	pub           *models.Publication
	getErr        error
	createErr     error
	forwardErr    error
	decisionErr   error
	finalizeErr   error
	deleteErr     error
	forwarded     []string
	created       bool
	deleted       bool
	notifications []models.Notification
}

func (m *mockPublicationRepo) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.pub == nil {
		return nil, sql.ErrNoRows
	}
	return m.pub, nil
}

func (m *mockPublicationRepo) List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error) {
	if m.pub == nil {
		return nil, 0, nil
	}
	return []models.Publication{*m.pub}, 1, nil
}

func (m *mockPublicationRepo) CountByStatus(ctx context.Context, ownerID string) (map[models.PublicationStatus]int, error) {
	return map[models.PublicationStatus]int{}, nil
}

func (m *mockPublicationRepo) CreateWithPayment(ctx context.Context, pub *models.Publication, payment *models.Payment, notifications []models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = true
	m.pub = pub
	m.notifications = notifications
	return nil
}

func (m *mockPublicationRepo) ForwardToReviewers(ctx context.Context, id string, version int, reviewerIDs []string, notifications []models.Notification) error {
	if m.forwardErr != nil {
		return m.forwardErr
	}
	m.forwarded = reviewerIDs
	m.notifications = notifications
	m.pub.ReviewerIDs = pq.StringArray(reviewerIDs)
	m.pub.Status = models.StatusUnderReview
	return nil
}

func (m *mockPublicationRepo) RecordDecision(ctx context.Context, id string, version int, decision models.ReviewerDecision, comments string, notifications []models.Notification) error {
	if m.decisionErr != nil {
		return m.decisionErr
	}
	m.pub.ReviewerDecision = &decision
	m.pub.ReviewComments = &comments
	m.pub.Status = models.StatusReviewed
	m.notifications = notifications
	return nil
}

func (m *mockPublicationRepo) Finalize(ctx context.Context, id string, version int, target models.PublicationStatus, notifications []models.Notification) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	m.pub.Status = target
	m.notifications = notifications
	return nil
}

func (m *mockPublicationRepo) SoftDelete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = true
	return nil
}

type mockPaymentReader struct {
	payment *models.Payment
	err     error
}

func (m *mockPaymentReader) FindByPublication(ctx context.Context, publicationID string) (*models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.payment == nil {
		return nil, sql.ErrNoRows
	}
	return m.payment, nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type mockAudit struct {
	entries []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

type mockStore struct {
	saved   []string
	deleted []string
	saveErr error
}

func (m *mockStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockStore) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }

func (m *mockStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type mockSigner struct{}

func (m *mockSigner) Generate(publicationID, relPath string) (string, time.Time, error) {
	return "token", time.Now().Add(time.Minute), nil
}

func (m *mockSigner) Parse(token string) (string, string, time.Time, error) {
	return "pub-1", "pub-1.pdf", time.Now().Add(time.Minute), nil
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

type mockChanges struct {
	events     []repository.ChangeEvent
	deletedPat []string
}

func (m *mockChanges) PublishChange(ctx context.Context, event repository.ChangeEvent) {
	m.events = append(m.events, event)
}

func (m *mockChanges) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletedPat = append(m.deletedPat, pattern)
	return nil
}

func testPublicationConfig() PublicationConfig {
	return PublicationConfig{
		Fee:              50,
		Currency:         "USD",
		AbstractMaxWords: 250,
		MaxKeywords:      5,
		MaxFileSize:      10 << 20,
		AllowedMIMEs:     []string{"application/pdf"},
		LinkBasePath:     "/api/v1",
	}
}

func newTestPublicationService(repo *mockPublicationRepo, payments *mockPaymentReader, users *mockUserLookup, store *mockStore, queue *mockQueue) (*PublicationService, *mockAudit, *mockChanges) {
	audit := &mockAudit{}
	changes := &mockChanges{}
	svc := NewPublicationService(repo, payments, users, audit, store, &mockSigner{}, queue, changes, nil, zap.NewNop(), testPublicationConfig())
	return svc, audit, changes
}

func validSubmitRequest() SubmitPublicationRequest {
	return SubmitPublicationRequest{
		Title:       "Adaptive Mesh Refinement in Fluid Simulations",
		Authors:     []string{"A. Researcher", "B. CoAuthor"},
		Abstract:    "A short abstract within limits.",
		Keywords:    []string{"cfd", "mesh"},
		Category:    "Computational Science",
		Type:        "journal",
		FileName:    "manuscript.pdf",
		FileSize:    1024,
		ContentType: "application/pdf",
		File:        strings.NewReader("%PDF-1.4"),
		OwnerID:     "author-1",
	}
}

func TestPublicationServiceSubmit(t *testing.T) {
	repo := &mockPublicationRepo{}
	users := &mockUserLookup{users: map[string]*models.User{
		"author-1": {ID: "author-1", Email: "author@example.edu", FullName: "Alex Author", Role: models.RoleAuthor, Active: true},
	}}
	store := &mockStore{}
	queue := &mockQueue{}
	svc, audit, changes := newTestPublicationService(repo, &mockPaymentReader{}, users, store, queue)

	pub, err := svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)
	require.True(t, repo.created)
	assert.Equal(t, models.StatusPending, pub.Status)
	assert.Equal(t, 1, pub.Version)
	assert.Equal(t, "/api/v1/publications/"+pub.ID+"/download-url", pub.DocumentURL)
	assert.Len(t, store.saved, 1)
	assert.Len(t, queue.jobs, 1)
	assert.Len(t, audit.entries, 1)
	assert.NotEmpty(t, changes.events)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, models.NotificationSubmissionConfirmed, repo.notifications[0].Type)
	assert.True(t, strings.HasPrefix(repo.notifications[0].Reference, "NTF-"))
}

func TestPublicationServiceSubmitAbstractTooLong(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	req := validSubmitRequest()
	req.Abstract = strings.Repeat("word ", 251)
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceSubmitTooManyKeywords(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	req := validSubmitRequest()
	req.Keywords = []string{"a", "b", "c", "d", "e", "f"}
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceSubmitRejectsNonPDF(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	req := validSubmitRequest()
	req.ContentType = "application/zip"
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceSubmitRemovesFileOnTxFailure(t *testing.T) {
	repo := &mockPublicationRepo{createErr: sql.ErrConnDone}
	users := &mockUserLookup{users: map[string]*models.User{
		"author-1": {ID: "author-1", Email: "author@example.edu", Role: models.RoleAuthor, Active: true},
	}}
	store := &mockStore{}
	svc, _, _ := newTestPublicationService(repo, &mockPaymentReader{}, users, store, &mockQueue{})

	_, err := svc.Submit(context.Background(), validSubmitRequest())
	require.Error(t, err)
	require.Len(t, store.saved, 1)
	require.Len(t, store.deleted, 1)
	assert.Equal(t, store.saved[0], store.deleted[0])
}

func pendingPublication() *models.Publication {
	return &models.Publication{
		ID:      "pub-1",
		Title:   "Pending Manuscript",
		OwnerID: "author-1",
		Status:  models.StatusPending,
		Version: 1,
	}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestPublicationServiceForwardRequiresCompletedPayment(t *testing.T) {
	repo := &mockPublicationRepo{pub: pendingPublication()}
	payments := &mockPaymentReader{payment: &models.Payment{ID: "pay-1", Status: models.PaymentPending}}
	svc, _, _ := newTestPublicationService(repo, payments, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	_, err := svc.ForwardToReviewers(context.Background(), "pub-1", ForwardRequest{ReviewerIDs: []string{"rev-1"}, Version: 1}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentIncomplete.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.forwarded)
}

func TestPublicationServiceForwardRejectsEmptyReviewerSet(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pendingPublication()}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	_, err := svc.ForwardToReviewers(context.Background(), "pub-1", ForwardRequest{ReviewerIDs: []string{"  ", ""}, Version: 1}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyReviewerSet.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceForwardDeduplicatesReviewers(t *testing.T) {
	repo := &mockPublicationRepo{pub: pendingPublication()}
	payments := &mockPaymentReader{payment: &models.Payment{ID: "pay-1", Status: models.PaymentCompleted}}
	users := &mockUserLookup{users: map[string]*models.User{
		"rev-1": {ID: "rev-1", Email: "rev@example.edu", Role: models.RoleReviewer, Active: true},
	}}
	queue := &mockQueue{}
	svc, _, _ := newTestPublicationService(repo, payments, users, &mockStore{}, queue)

	pub, err := svc.ForwardToReviewers(context.Background(), "pub-1", ForwardRequest{ReviewerIDs: []string{"rev-1", "rev-1"}, Version: 1}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"rev-1"}, repo.forwarded)
	assert.Equal(t, models.StatusUnderReview, pub.Status)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, models.NotificationReviewRequested, repo.notifications[0].Type)
	assert.Len(t, queue.jobs, 1)
}

func TestPublicationServiceForwardStaleVersion(t *testing.T) {
	repo := &mockPublicationRepo{pub: pendingPublication(), forwardErr: sql.ErrNoRows}
	payments := &mockPaymentReader{payment: &models.Payment{ID: "pay-1", Status: models.PaymentCompleted}}
	users := &mockUserLookup{users: map[string]*models.User{
		"rev-1": {ID: "rev-1", Role: models.RoleReviewer, Active: true},
	}}
	svc, _, _ := newTestPublicationService(repo, payments, users, &mockStore{}, &mockQueue{})

	_, err := svc.ForwardToReviewers(context.Background(), "pub-1", ForwardRequest{ReviewerIDs: []string{"rev-1"}, Version: 1}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleVersion.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceDecisionRequiresAssignment(t *testing.T) {
	pub := pendingPublication()
	pub.Status = models.StatusUnderReview
	pub.ReviewerIDs = pq.StringArray{"rev-1"}
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pub}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	claims := &models.JWTClaims{UserID: "rev-2", Role: models.RoleReviewer}
	_, err := svc.RecordDecision(context.Background(), "pub-1", DecisionRequest{Decision: models.DecisionAccepted, Comments: "ok", Version: 2}, claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotAssignedReviewer.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceDecisionByAssignedReviewer(t *testing.T) {
	pub := pendingPublication()
	pub.Status = models.StatusUnderReview
	pub.ReviewerIDs = pq.StringArray{"rev-1"}
	repo := &mockPublicationRepo{pub: pub}
	svc, _, _ := newTestPublicationService(repo, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	claims := &models.JWTClaims{UserID: "rev-1", Role: models.RoleReviewer}
	out, err := svc.RecordDecision(context.Background(), "pub-1", DecisionRequest{Decision: models.DecisionAccepted, Comments: "solid work", Version: 2}, claims)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, out.Status)
	require.NotNil(t, out.ReviewerDecision)
	assert.Equal(t, models.DecisionAccepted, *out.ReviewerDecision)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, models.NotificationReviewCompleted, repo.notifications[0].Type)
	assert.Equal(t, "author-1", repo.notifications[0].UserID)
}

func TestPublicationServiceDecisionRequiresActiveReview(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pendingPublication()}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	claims := &models.JWTClaims{UserID: "rev-1", Role: models.RoleReviewer}
	_, err := svc.RecordDecision(context.Background(), "pub-1", DecisionRequest{Decision: models.DecisionRejected, Comments: "n/a", Version: 1}, claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceFinalizeMustMatchVerdict(t *testing.T) {
	pub := pendingPublication()
	pub.Status = models.StatusReviewed
	decision := models.DecisionRejected
	pub.ReviewerDecision = &decision
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pub}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	_, err := svc.Finalize(context.Background(), "pub-1", FinalizeRequest{Status: models.StatusPublished, Version: 3}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceFinalizePublishes(t *testing.T) {
	pub := pendingPublication()
	pub.Status = models.StatusReviewed
	decision := models.DecisionAccepted
	pub.ReviewerDecision = &decision
	repo := &mockPublicationRepo{pub: pub}
	users := &mockUserLookup{users: map[string]*models.User{
		"author-1": {ID: "author-1", Email: "author@example.edu"},
	}}
	queue := &mockQueue{}
	svc, _, _ := newTestPublicationService(repo, &mockPaymentReader{}, users, &mockStore{}, queue)

	out, err := svc.Finalize(context.Background(), "pub-1", FinalizeRequest{Status: models.StatusPublished, Version: 3}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, out.Status)
	assert.Len(t, queue.jobs, 1)
}

func TestPublicationServiceDeleteForbiddenForOtherAuthors(t *testing.T) {
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pendingPublication()}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	claims := &models.JWTClaims{UserID: "author-2", Role: models.RoleAuthor}
	err := svc.Delete(context.Background(), "pub-1", claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceDeleteRemovesDocument(t *testing.T) {
	pub := pendingPublication()
	pub.DocumentPath = "pub-1.pdf"
	repo := &mockPublicationRepo{pub: pub}
	store := &mockStore{}
	svc, _, _ := newTestPublicationService(repo, &mockPaymentReader{}, &mockUserLookup{}, store, &mockQueue{})

	require.NoError(t, svc.Delete(context.Background(), "pub-1", adminClaims()))
	assert.True(t, repo.deleted)
	assert.Equal(t, []string{"pub-1.pdf"}, store.deleted)
}

func TestPublicationServiceLifecycleFeedsMetrics(t *testing.T) {
	metrics := NewMetricsService(nil)
	users := &mockUserLookup{users: map[string]*models.User{
		"author-1": {ID: "author-1", Email: "author@example.edu", Role: models.RoleAuthor, Active: true},
		"rev-1":    {ID: "rev-1", Email: "rev@example.edu", Role: models.RoleReviewer, Active: true},
	}}

	submitSvc, _, _ := newTestPublicationService(&mockPublicationRepo{}, &mockPaymentReader{}, users, &mockStore{}, &mockQueue{})
	submitSvc.SetMetrics(metrics)
	_, err := submitSvc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	forwardSvc, _, _ := newTestPublicationService(
		&mockPublicationRepo{pub: pendingPublication()},
		&mockPaymentReader{payment: &models.Payment{ID: "pay-1", Status: models.PaymentCompleted}},
		users, &mockStore{}, &mockQueue{})
	forwardSvc.SetMetrics(metrics)
	_, err = forwardSvc.ForwardToReviewers(context.Background(), "pub-1", ForwardRequest{ReviewerIDs: []string{"rev-1"}, Version: 1}, adminClaims())
	require.NoError(t, err)

	underReview := pendingPublication()
	underReview.Status = models.StatusUnderReview
	underReview.ReviewerIDs = pq.StringArray{"rev-1"}
	decisionSvc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: underReview}, &mockPaymentReader{}, users, &mockStore{}, &mockQueue{})
	decisionSvc.SetMetrics(metrics)
	_, err = decisionSvc.RecordDecision(context.Background(), "pub-1",
		DecisionRequest{Decision: models.DecisionAccepted, Comments: "ready", Version: 2},
		&models.JWTClaims{UserID: "rev-1", Role: models.RoleReviewer})
	require.NoError(t, err)

	reviewed := pendingPublication()
	reviewed.Status = models.StatusReviewed
	decision := models.DecisionAccepted
	reviewed.ReviewerDecision = &decision
	finalizeSvc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: reviewed}, &mockPaymentReader{}, users, &mockStore{}, &mockQueue{})
	finalizeSvc.SetMetrics(metrics)
	_, err = finalizeSvc.Finalize(context.Background(), "pub-1", FinalizeRequest{Status: models.StatusPublished, Version: 3}, adminClaims())
	require.NoError(t, err)

	deleteSvc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pendingPublication()}, &mockPaymentReader{}, users, &mockStore{}, &mockQueue{})
	deleteSvc.SetMetrics(metrics)
	require.NoError(t, deleteSvc.Delete(context.Background(), "pub-1", adminClaims()))

	for _, status := range []models.PublicationStatus{
		models.StatusPending,
		models.StatusUnderReview,
		models.StatusReviewed,
		models.StatusPublished,
		models.StatusDeleted,
	} {
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.transitions.WithLabelValues(string(status))), string(status))
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.emailsQueued))
}

func TestPublicationServiceGetVisibility(t *testing.T) {
	pub := pendingPublication()
	svc, _, _ := newTestPublicationService(&mockPublicationRepo{pub: pub}, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	_, err := svc.Get(context.Background(), "pub-1", nil)
	require.Error(t, err)

	owner := &models.JWTClaims{UserID: "author-1", Role: models.RoleAuthor}
	_, err = svc.Get(context.Background(), "pub-1", owner)
	require.NoError(t, err)

	pub.Status = models.StatusPublished
	_, err = svc.Get(context.Background(), "pub-1", nil)
	require.NoError(t, err)
}

func TestPublicationServiceListScopesByRole(t *testing.T) {
	pub := pendingPublication()
	repo := &mockPublicationRepo{pub: pub}
	svc, _, _ := newTestPublicationService(repo, &mockPaymentReader{}, &mockUserLookup{}, &mockStore{}, &mockQueue{})

	author := &models.JWTClaims{UserID: "author-1", Role: models.RoleAuthor}
	_, total, err := svc.List(context.Background(), models.PublicationFilter{}, author)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
