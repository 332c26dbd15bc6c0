package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pubdesk-api/internal/models"
)

// SecurityLogRepository stores security-relevant events.
type SecurityLogRepository struct {
	db *sqlx.DB
}

// NewSecurityLogRepository creates a new instance of SecurityLogRepository.
func NewSecurityLogRepository(db *sqlx.DB) *SecurityLogRepository {
	return &SecurityLogRepository{db: db}
}

// Create inserts a security log entry.
func (r *SecurityLogRepository) Create(ctx context.Context, log *models.SecurityLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO security_logs (id, user_id, event, detail, ip_address, user_agent, created_at) VALUES (:id, :user_id, :event, :detail, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create security log: %w", err)
	}
	return nil
}

// ListRecent returns the newest security log entries.
func (r *SecurityLogRepository) ListRecent(ctx context.Context, limit int) ([]models.SecurityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, user_id, event, detail, ip_address, user_agent, created_at FROM security_logs ORDER BY created_at DESC LIMIT %d`, limit)
	var logs []models.SecurityLog
	if err := r.db.SelectContext(ctx, &logs, query); err != nil {
		return nil, fmt.Errorf("list security logs: %w", err)
	}
	return logs, nil
}
