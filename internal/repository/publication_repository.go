package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/pubdesk-api/internal/models"
)

const publicationColumns = `id, title, authors, abstract, keywords, category, pub_type, document_path, document_url, owner_id, reviewer_ids, reviewer_decision, review_comments, reviewed_at, status, version, deleted_at, created_at, updated_at`

// notDeleted excludes soft-deleted rows from every standard query.
const notDeleted = `deleted_at IS NULL AND status <> 'DELETED'`

// PublicationRepository provides database access for publications. State
// transitions run inside a single transaction together with their
// notification rows, and compare-and-swap on the version column so stale
// writes never overwrite concurrent changes.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates a new instance of PublicationRepository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// GetByID returns a publication by identifier. Soft-deleted rows are not found.
func (r *PublicationRepository) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = $1 AND ` + notDeleted + ` LIMIT 1`
	var pub models.Publication
	if err := r.db.GetContext(ctx, &pub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find publication by id: %w", err)
	}
	return &pub, nil
}

// List returns publications matching the filter with total count.
func (r *PublicationRepository) List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error) {
	baseQuery := `FROM publications WHERE ` + notDeleted
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.PublicOnly {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, models.StatusPublished)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.ReviewerID != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(reviewer_ids)", len(args)+1))
		args = append(args, filter.ReviewerID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(category) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Category))
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(abstract) LIKE $%d)", idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"title":      true,
		"created_at": true,
		"updated_at": true,
		"status":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", publicationColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var pubs []models.Publication
	if err := r.db.SelectContext(ctx, &pubs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list publications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count publications: %w", err)
	}

	return pubs, total, nil
}

// CountByStatus aggregates non-deleted publications per status, optionally
// scoped to one owner. Used by the role dashboards.
func (r *PublicationRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.PublicationStatus]int, error) {
	query := `SELECT status, COUNT(*) AS total FROM publications WHERE ` + notDeleted
	var args []interface{}
	if ownerID != "" {
		query += ` AND owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` GROUP BY status`

	rows := []struct {
		Status models.PublicationStatus `db:"status"`
		Total  int                      `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count publications by status: %w", err)
	}

	counts := make(map[models.PublicationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// CreateWithPayment inserts a publication, its processing-fee payment and the
// submission-confirmation notification in one transaction. Either all rows
// commit or none do.
func (r *PublicationRepository) CreateWithPayment(ctx context.Context, pub *models.Publication, payment *models.Payment, notifications []models.Notification) error {
	now := time.Now().UTC()
	if pub.ID == "" {
		pub.ID = uuid.NewString()
	}
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = now
	}
	pub.UpdatedAt = now
	if pub.Version == 0 {
		pub.Version = 1
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.PublicationID = pub.ID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const pubQuery = `INSERT INTO publications (id, title, authors, abstract, keywords, category, pub_type, document_path, document_url, owner_id, reviewer_ids, status, version, created_at, updated_at) VALUES (:id, :title, :authors, :abstract, :keywords, :category, :pub_type, :document_path, :document_url, :owner_id, :reviewer_ids, :status, :version, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, pubQuery, pub); err != nil {
		return fmt.Errorf("insert publication: %w", err)
	}

	const payQuery = `INSERT INTO payments (id, publication_id, user_id, amount, currency, method, status, customer_name, customer_email, reason, reference, order_no, created_at, updated_at) VALUES (:id, :publication_id, :user_id, :amount, :currency, :method, :status, :customer_name, :customer_email, :reason, :reference, :order_no, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, payQuery, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission tx: %w", err)
	}
	return nil
}

// ForwardToReviewers routes a pending publication to the given reviewers and
// records one notification per reviewer in the same transaction. The update
// compare-and-swaps on version and current status; zero rows affected means
// the row changed underneath the caller and sql.ErrNoRows is returned.
func (r *PublicationRepository) ForwardToReviewers(ctx context.Context, id string, version int, reviewerIDs []string, notifications []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forward tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE publications SET reviewer_ids = $3, status = $4, version = version + 1, updated_at = $5 WHERE id = $1 AND version = $2 AND status = $6 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, id, version, pq.Array(reviewerIDs), models.StatusUnderReview, time.Now().UTC(), models.StatusPending)
	if err != nil {
		return fmt.Errorf("forward publication: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	if err := insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forward tx: %w", err)
	}
	return nil
}

// RecordDecision stores a reviewer verdict and moves the publication to
// REVIEWED, inserting the review-completed notification atomically.
func (r *PublicationRepository) RecordDecision(ctx context.Context, id string, version int, decision models.ReviewerDecision, comments string, notifications []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const query = `UPDATE publications SET reviewer_decision = $3, review_comments = $4, reviewed_at = $5, status = $6, version = version + 1, updated_at = $5 WHERE id = $1 AND version = $2 AND status = $7 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, id, version, decision, comments, now, models.StatusReviewed, models.StatusUnderReview)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	if err := insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	return nil
}

// Finalize moves a reviewed publication to PUBLISHED or REJECTED together
// with the author notification.
func (r *PublicationRepository) Finalize(ctx context.Context, id string, version int, target models.PublicationStatus, notifications []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE publications SET status = $3, version = version + 1, updated_at = $4 WHERE id = $1 AND version = $2 AND status = $5 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, id, version, target, time.Now().UTC(), models.StatusReviewed)
	if err != nil {
		return fmt.Errorf("finalize publication: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	if err := insertNotifications(ctx, tx, notifications); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize tx: %w", err)
	}
	return nil
}

// SoftDelete flags a publication as deleted so every listing excludes it.
// The row itself is retained.
func (r *PublicationRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE publications SET status = $2, deleted_at = $3, version = version + 1, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, models.StatusDeleted, now)
	if err != nil {
		return fmt.Errorf("soft delete publication: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
