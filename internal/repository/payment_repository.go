package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pubdesk-api/internal/models"
)

const paymentColumns = `id, publication_id, user_id, amount, currency, method, status, customer_name, customer_email, reason, reference, order_no, created_at, updated_at`

// PaymentRepository provides database access for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByID returns a payment by identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &payment, nil
}

// FindByPublication returns the payment associated with a publication.
func (r *PaymentRepository) FindByPublication(ctx context.Context, publicationID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE publication_id = $1 ORDER BY created_at DESC LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, publicationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by publication: %w", err)
	}
	return &payment, nil
}

// Create inserts a payment row. Used by admin manual entry; submission-time
// payments are created inside the publication transaction.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	const query = `INSERT INTO payments (id, publication_id, user_id, amount, currency, method, status, customer_name, customer_email, reason, reference, order_no, created_at, updated_at) VALUES (:id, :publication_id, :user_id, :amount, :currency, :method, :status, :customer_name, :customer_email, :reason, :reference, :order_no, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// List returns payments matching the filter with total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	baseQuery := `FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.PublicationID != "" {
		conditions = append(conditions, fmt.Sprintf("publication_id = $%d", len(args)+1))
		args = append(args, filter.PublicationID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", paymentColumns, baseQuery, pageSize, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	return payments, total, nil
}

// MarkCompleted conditionally flips a payment to Completed. It reports true
// only when this call performed the flip, which lets the caller fire the
// admins-notified side effect exactly once.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`
	result, err := r.db.ExecContext(ctx, query, id, models.PaymentCompleted, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark payment completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment completed: rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkFailed flips a non-completed payment to Failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id string) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentFailed, time.Now().UTC(), models.PaymentCompleted); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// SumCompleted returns the total amount of completed payments. Used by the
// admin dashboard.
func (r *PaymentRepository) SumCompleted(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, models.PaymentCompleted); err != nil {
		return 0, fmt.Errorf("sum completed payments: %w", err)
	}
	return total, nil
}
