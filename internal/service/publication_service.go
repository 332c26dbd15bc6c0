package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/repository"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/jobs"
	"github.com/noah-isme/pubdesk-api/pkg/mailer"
)

type publicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Publication, error)
	List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.PublicationStatus]int, error)
	CreateWithPayment(ctx context.Context, pub *models.Publication, payment *models.Payment, notifications []models.Notification) error
	ForwardToReviewers(ctx context.Context, id string, version int, reviewerIDs []string, notifications []models.Notification) error
	RecordDecision(ctx context.Context, id string, version int, decision models.ReviewerDecision, comments string, notifications []models.Notification) error
	Finalize(ctx context.Context, id string, version int, target models.PublicationStatus, notifications []models.Notification) error
	SoftDelete(ctx context.Context, id string) error
}

type publicationPaymentReader interface {
	FindByPublication(ctx context.Context, publicationID string) (*models.Payment, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(publicationID, relPath string) (string, time.Time, error)
	Parse(token string) (publicationID, relPath string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type changeNotifier interface {
	PublishChange(ctx context.Context, event repository.ChangeEvent)
	DeleteByPattern(ctx context.Context, pattern string) error
}

// PublicationConfig holds manuscript validation limits and fee settings.
// LinkBasePath is the route prefix under which download links are minted.
type PublicationConfig struct {
	Fee              float64
	Currency         string
	AbstractMaxWords int
	MaxKeywords      int
	MaxFileSize      int64
	AllowedMIMEs     []string
	LinkBasePath     string
}

// SubmitPublicationRequest carries a new manuscript submission.
type SubmitPublicationRequest struct {
	Title    string   `json:"title" validate:"required,min=3"`
	Authors  []string `json:"authors" validate:"required,min=1,dive,required"`
	Abstract string   `json:"abstract" validate:"required"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category" validate:"required"`
	Type     string   `json:"type" validate:"required"`

	FileName    string    `json:"-"`
	FileSize    int64     `json:"-"`
	ContentType string    `json:"-"`
	File        io.Reader `json:"-"`

	OwnerID   string `json:"-"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ForwardRequest routes a pending manuscript to reviewers.
type ForwardRequest struct {
	ReviewerIDs []string `json:"reviewer_ids" validate:"required"`
	Version     int      `json:"version" validate:"required,min=1"`
}

// DecisionRequest records a reviewer verdict.
type DecisionRequest struct {
	Decision models.ReviewerDecision `json:"decision" validate:"required,oneof=ACCEPTED REJECTED"`
	Comments string                  `json:"comments" validate:"required"`
	Version  int                     `json:"version" validate:"required,min=1"`
}

// FinalizeRequest moves a reviewed manuscript to its terminal status.
type FinalizeRequest struct {
	Status  models.PublicationStatus `json:"status" validate:"required,oneof=PUBLISHED REJECTED"`
	Version int                      `json:"version" validate:"required,min=1"`
}

// PublicationService manages the manuscript lifecycle from submission to
// publication. Every state transition is checked against the legal
// transition table and compare-and-swapped on the stored version.
type PublicationService struct {
	repo      publicationRepository
	payments  publicationPaymentReader
	users     userLookup
	audit     auditRecorder
	store     documentStore
	signer    downloadSigner
	mailQueue jobEnqueuer
	changes   changeNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    PublicationConfig
}

// NewPublicationService constructs a PublicationService.
func NewPublicationService(
	repo publicationRepository,
	payments publicationPaymentReader,
	users userLookup,
	audit auditRecorder,
	store documentStore,
	signer downloadSigner,
	mailQueue jobEnqueuer,
	changes changeNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	config PublicationConfig,
) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PublicationService{
		repo:      repo,
		payments:  payments,
		users:     users,
		audit:     audit,
		store:     store,
		signer:    signer,
		mailQueue: mailQueue,
		changes:   changes,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// SetMetrics attaches the Prometheus collectors fed on every successful
// lifecycle transition.
func (s *PublicationService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Submit validates and stores a new manuscript. The publication row, its
// processing-fee payment and the confirmation notification commit in one
// transaction; the stored file is removed again if that transaction fails.
func (s *PublicationService) Submit(ctx context.Context, req SubmitPublicationRequest) (*models.Publication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if words := len(strings.Fields(req.Abstract)); words > s.config.AbstractMaxWords {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("abstract exceeds %d words (%d given)", s.config.AbstractMaxWords, words))
	}
	keywords := dedupeStrings(req.Keywords)
	if len(keywords) > s.config.MaxKeywords {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d keywords are allowed", s.config.MaxKeywords))
	}
	authors := dedupeStrings(req.Authors)
	if len(authors) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one author is required")
	}
	if req.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manuscript document is required")
	}
	if s.config.MaxFileSize > 0 && req.FileSize > s.config.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document exceeds maximum size of %d bytes", s.config.MaxFileSize))
	}
	if !mimeAllowed(req.ContentType, s.config.AllowedMIMEs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported document type %q", req.ContentType))
	}

	pubID := uuid.NewString()
	storedName := fmt.Sprintf("%s%s", pubID, fileExtension(req.FileName))
	if _, err := s.store.SaveStream(storedName, req.File); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store manuscript document")
	}

	owner, err := s.users.FindByID(ctx, req.OwnerID)
	if err != nil {
		s.removeDocument(storedName)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitting user")
	}

	pub := &models.Publication{
		ID:           pubID,
		Title:        strings.TrimSpace(req.Title),
		Authors:      pq.StringArray(authors),
		Abstract:     strings.TrimSpace(req.Abstract),
		Keywords:     pq.StringArray(keywords),
		Category:     req.Category,
		Type:         req.Type,
		DocumentPath: storedName,
		DocumentURL:  fmt.Sprintf("%s/publications/%s/download-url", s.config.LinkBasePath, pubID),
		OwnerID:      req.OwnerID,
		ReviewerIDs:  pq.StringArray{},
		Status:       models.StatusPending,
		Version:      1,
	}
	payment := &models.Payment{
		ID:            uuid.NewString(),
		UserID:        req.OwnerID,
		Amount:        s.config.Fee,
		Currency:      s.config.Currency,
		Status:        models.PaymentPending,
		CustomerName:  owner.FullName,
		CustomerEmail: owner.Email,
		Reason:        fmt.Sprintf("Processing fee for %q", pub.Title),
		Reference:     NewPaymentReference(),
		OrderNo:       NewPaymentReference(),
	}
	notifications := []models.Notification{submissionConfirmedNotification(pub, payment)}

	if err := s.repo.CreateWithPayment(ctx, pub, payment, notifications); err != nil {
		s.removeDocument(storedName)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist submission")
	}

	s.metrics.ObserveTransition(string(models.StatusPending))
	s.recordAudit(ctx, req.OwnerID, models.AuditActionSubmissionCreate, pub.ID, req.IP, req.UserAgent)
	s.queueEmail(owner.Email, "Submission received",
		fmt.Sprintf("<p>Your manuscript <strong>%s</strong> was received.</p><p>Pay the processing fee (%s %.2f, reference %s) to enter review.</p>",
			pub.Title, payment.Currency, payment.Amount, payment.Reference))
	s.afterWrite(ctx, "publications", pub.ID)

	return pub, nil
}

// Get returns one publication subject to visibility rules. Published work
// is visible to everyone, everything else only to its owner, its assigned
// reviewers and admins.
func (s *PublicationService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Publication, error) {
	pub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if !s.canView(pub, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this publication")
	}
	return pub, nil
}

// List returns publications scoped to the caller's role. Authors see their
// own work, reviewers their assignments, admins everything. Anonymous
// callers only see published work.
func (s *PublicationService) List(ctx context.Context, filter models.PublicationFilter, claims *models.JWTClaims) ([]models.Publication, int, error) {
	switch {
	case claims == nil:
		filter.PublicOnly = true
		filter.OwnerID = ""
		filter.ReviewerID = ""
	case claims.Role == models.RoleAuthor:
		filter.OwnerID = claims.UserID
		filter.ReviewerID = ""
	case claims.Role == models.RoleReviewer:
		filter.ReviewerID = claims.UserID
		filter.OwnerID = ""
	}

	pubs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list publications")
	}
	return pubs, total, nil
}

// ForwardToReviewers routes a pending, fully paid manuscript into review.
// The reviewer set is deduplicated and must be non-empty; every entry must
// be an active reviewer account.
func (s *PublicationService) ForwardToReviewers(ctx context.Context, id string, req ForwardRequest, claims *models.JWTClaims) (*models.Publication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forward payload")
	}

	reviewerIDs := dedupeStrings(req.ReviewerIDs)
	if len(reviewerIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyReviewerSet, "")
	}

	pub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if pub.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("publication is %s, only pending manuscripts can be forwarded", pub.Status.Label()))
	}

	payment, err := s.payments.FindByPublication(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPaymentIncomplete, "no payment recorded for this publication")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status != models.PaymentCompleted {
		return nil, appErrors.Clone(appErrors.ErrPaymentIncomplete, "")
	}

	reviewers := make([]*models.User, 0, len(reviewerIDs))
	for _, reviewerID := range reviewerIDs {
		reviewer, err := s.users.FindByID(ctx, reviewerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reviewer %s does not exist", reviewerID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
		}
		if reviewer.Role != models.RoleReviewer || !reviewer.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s is not an active reviewer", reviewerID))
		}
		reviewers = append(reviewers, reviewer)
	}

	notifications := reviewRequestedNotifications(pub, reviewerIDs)
	if err := s.repo.ForwardToReviewers(ctx, id, req.Version, reviewerIDs, notifications); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleVersion, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to forward publication")
	}

	s.metrics.ObserveTransition(string(models.StatusUnderReview))
	s.recordAudit(ctx, claims.UserID, models.AuditActionReviewForward, pub.ID, "", "")
	for _, reviewer := range reviewers {
		s.queueEmail(reviewer.Email, "Review requested",
			fmt.Sprintf("<p>The manuscript <strong>%s</strong> has been assigned to you for review.</p>", pub.Title))
	}
	s.afterWrite(ctx, "publications", pub.ID)

	return s.repo.GetByID(ctx, id)
}

// RecordDecision stores an assigned reviewer's verdict and moves the
// manuscript to reviewed.
func (s *PublicationService) RecordDecision(ctx context.Context, id string, req DecisionRequest, claims *models.JWTClaims) (*models.Publication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	pub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if pub.Status != models.StatusUnderReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("publication is %s, decisions require an active review", pub.Status.Label()))
	}
	if claims.Role != models.RoleAdmin && !containsString(pub.ReviewerIDs, claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrNotAssignedReviewer, "")
	}

	notifications := []models.Notification{reviewCompletedNotification(pub, req.Decision)}
	if err := s.repo.RecordDecision(ctx, id, req.Version, req.Decision, req.Comments, notifications); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleVersion, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.metrics.ObserveTransition(string(models.StatusReviewed))
	s.recordAudit(ctx, claims.UserID, models.AuditActionReviewDecision, pub.ID, "", "")
	s.afterWrite(ctx, "publications", pub.ID)

	return s.repo.GetByID(ctx, id)
}

// Finalize moves a reviewed manuscript to its terminal status. The target
// must agree with the recorded reviewer verdict.
func (s *PublicationService) Finalize(ctx context.Context, id string, req FinalizeRequest, claims *models.JWTClaims) (*models.Publication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}

	pub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if !pub.Status.CanTransition(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move a %s publication to %s", pub.Status.Label(), req.Status.Label()))
	}
	if pub.ReviewerDecision != nil {
		expected := models.StatusRejected
		if *pub.ReviewerDecision == models.DecisionAccepted {
			expected = models.StatusPublished
		}
		if req.Status != expected {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("reviewer verdict %s requires finalizing to %s", *pub.ReviewerDecision, expected.Label()))
		}
	}

	notifications := []models.Notification{publicationFinalizedNotification(pub, req.Status)}
	if err := s.repo.Finalize(ctx, id, req.Version, req.Status, notifications); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleVersion, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize publication")
	}

	s.metrics.ObserveTransition(string(req.Status))
	s.recordAudit(ctx, claims.UserID, models.AuditActionPublicationFinal, pub.ID, "", "")
	if owner, err := s.users.FindByID(ctx, pub.OwnerID); err == nil {
		s.queueEmail(owner.Email, fmt.Sprintf("Manuscript %s", req.Status.Label()),
			fmt.Sprintf("<p>Your manuscript <strong>%s</strong> is now %s.</p>", pub.Title, req.Status.Label()))
	}
	s.afterWrite(ctx, "publications", pub.ID)

	return s.repo.GetByID(ctx, id)
}

// Delete soft-deletes a publication and removes its stored document.
// Authors may delete their own pending work; admins may delete anything.
func (s *PublicationService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	pub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if claims.Role != models.RoleAdmin {
		if pub.OwnerID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "not allowed to delete this publication")
		}
		if pub.Status != models.StatusPending {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending submissions can be withdrawn")
		}
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete publication")
	}

	s.removeDocument(pub.DocumentPath)
	s.metrics.ObserveTransition(string(models.StatusDeleted))
	s.recordAudit(ctx, claims.UserID, models.AuditActionPublicationDelete, pub.ID, "", "")
	s.afterWrite(ctx, "publications", pub.ID)

	return nil
}

// DownloadURL issues a short-lived signed token for fetching the document.
func (s *PublicationService) DownloadURL(ctx context.Context, id string, claims *models.JWTClaims) (string, time.Time, error) {
	pub, err := s.Get(ctx, id, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expires, err := s.signer.Generate(pub.ID, pub.DocumentPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expires, nil
}

// OpenDocument validates a signed token and opens the referenced document.
func (s *PublicationService) OpenDocument(ctx context.Context, token string) (*models.Publication, *os.File, error) {
	publicationID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	pub, err := s.repo.GetByID(ctx, publicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	if pub.DocumentPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match the stored document")
	}
	file, err := s.store.Open(pub.DocumentPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return pub, file, nil
}

// StatusCatalog returns presentation metadata for every lifecycle status.
func (s *PublicationService) StatusCatalog() []models.StatusInfo {
	return models.StatusCatalog()
}

func (s *PublicationService) canView(pub *models.Publication, claims *models.JWTClaims) bool {
	if pub.Status == models.StatusPublished {
		return true
	}
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleAdmin {
		return true
	}
	if pub.OwnerID == claims.UserID {
		return true
	}
	return containsString(pub.ReviewerIDs, claims.UserID)
}

func (s *PublicationService) removeDocument(name string) {
	if name == "" {
		return
	}
	if err := s.store.Delete(name); err != nil {
		s.logger.Warn("failed to remove stored document", zap.String("document", name), zap.Error(err))
	}
}

func (s *PublicationService) recordAudit(ctx context.Context, userID, action, resourceID, ip, userAgent string) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "publications",
		ResourceID: &resourceID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *PublicationService) queueEmail(recipient, subject, body string) {
	if s.mailQueue == nil {
		return
	}
	job := jobs.Job{
		Type: "email",
		Payload: mailer.Message{
			Recipients: []string{recipient},
			Subject:    subject,
			HTMLBody:   body,
		},
	}
	if err := s.mailQueue.Enqueue(job); err != nil {
		s.logger.Warn("failed to queue email", zap.String("subject", subject), zap.Error(err))
		return
	}
	s.metrics.ObserveEmailQueued()
}

func (s *PublicationService) afterWrite(ctx context.Context, table, id string) {
	if s.changes == nil {
		return
	}
	if err := s.changes.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
	s.changes.PublishChange(ctx, repository.ChangeEvent{Table: table, ID: id})
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func mimeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if strings.EqualFold(strings.TrimSpace(m), contentType) {
			return true
		}
	}
	return false
}

func fileExtension(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}
