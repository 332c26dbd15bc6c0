package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pubdesk-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func paymentRows(p models.Payment) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "publication_id", "user_id", "amount", "currency", "method",
		"status", "customer_name", "customer_email", "reason", "reference",
		"order_no", "created_at", "updated_at",
	}).AddRow(
		p.ID, p.PublicationID, p.UserID, p.Amount, p.Currency, p.Method,
		p.Status, p.CustomerName, p.CustomerEmail, p.Reason, p.Reference,
		p.OrderNo, p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{
		PublicationID: "pub-1",
		UserID:        "user-1",
		Amount:        50,
		Currency:      "USD",
		Method:        "bank_transfer",
		Status:        models.PaymentPending,
		Reference:     "PAY-0011aabbccdd",
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	require.NotEmpty(t, payment.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, publication_id, user_id")).
		WithArgs(payment.ID).
		WillReturnRows(paymentRows(*payment))

	found, err := repo.GetByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByPublication(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	payment := models.Payment{
		ID:            "pay-1",
		PublicationID: "pub-1",
		UserID:        "user-1",
		Amount:        50,
		Status:        models.PaymentCompleted,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, publication_id, user_id")).
		WithArgs("pub-1").
		WillReturnRows(paymentRows(payment))

	found, err := repo.FindByPublication(context.Background(), "pub-1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkCompletedOnce(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := repo.MarkCompleted(context.Background(), "pay-1")
	require.NoError(t, err)
	require.True(t, flipped)

	// Second call finds the row already completed and reports no flip.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err = repo.MarkCompleted(context.Background(), "pay-1")
	require.NoError(t, err)
	require.False(t, flipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkFailed(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "pay-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	payment := models.Payment{
		ID:            "pay-2",
		PublicationID: "pub-2",
		UserID:        "user-2",
		Amount:        50,
		Status:        models.PaymentPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	status := models.PaymentPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, publication_id, user_id")).
		WithArgs(status).
		WillReturnRows(paymentRows(payment))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{Status: &status})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, payments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumCompleted(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)")).
		WithArgs(models.PaymentCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(350.0))

	total, err := repo.SumCompleted(context.Background())
	require.NoError(t, err)
	require.Equal(t, 350.0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
