package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/pubdesk-api/internal/models"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type receiptRenderer interface {
	Receipt(title string, fields []export.ReceiptField) ([]byte, error)
}

type paymentLookup interface {
	GetByID(ctx context.Context, id string) (*models.Payment, error)
}

// ExportService renders publication listings as CSV and payment receipts
// as PDF documents.
type ExportService struct {
	publications dashboardPublicationReader
	paymentsByID paymentLookup
	csv          csvRenderer
	receipt      receiptRenderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(
	publications dashboardPublicationReader,
	paymentsByID paymentLookup,
	csv csvRenderer,
	receipt receiptRenderer,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		publications: publications,
		paymentsByID: paymentsByID,
		csv:          csv,
		receipt:      receipt,
		logger:       logger,
	}
}

var publicationExportHeaders = []string{
	"ID", "Title", "Authors", "Category", "Type", "Status", "Reviewer Decision", "Created", "Updated",
}

// PublicationsCSV renders the full (filtered) publication listing.
func (s *ExportService) PublicationsCSV(ctx context.Context, filter models.PublicationFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100

	rows := make([]map[string]string, 0, filter.PageSize)
	for {
		pubs, total, err := s.publications.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publications for export")
		}
		for _, pub := range pubs {
			decision := ""
			if pub.ReviewerDecision != nil {
				decision = string(*pub.ReviewerDecision)
			}
			rows = append(rows, map[string]string{
				"ID":                pub.ID,
				"Title":             pub.Title,
				"Authors":           strings.Join(pub.Authors, "; "),
				"Category":          pub.Category,
				"Type":              pub.Type,
				"Status":            pub.Status.Label(),
				"Reviewer Decision": decision,
				"Created":           pub.CreatedAt.Format("2006-01-02 15:04"),
				"Updated":           pub.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		if len(rows) >= total || len(pubs) == 0 {
			break
		}
		filter.Page++
	}

	data, err := s.csv.Render(export.Dataset{Headers: publicationExportHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// PaymentReceipt renders a PDF receipt for a completed payment.
func (s *ExportService) PaymentReceipt(ctx context.Context, paymentID string, claims *models.JWTClaims) ([]byte, error) {
	payment, err := s.paymentsByID.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if claims.Role != models.RoleAdmin && payment.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this receipt")
	}
	if payment.Status != models.PaymentCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipts are only available for completed payments")
	}

	fields := []export.ReceiptField{
		{Label: "Reference", Value: payment.Reference},
		{Label: "Order No", Value: payment.OrderNo},
		{Label: "Publication", Value: payment.PublicationID},
		{Label: "Payer", Value: payment.CustomerName},
		{Label: "Email", Value: payment.CustomerEmail},
		{Label: "Amount", Value: fmt.Sprintf("%s %.2f", payment.Currency, payment.Amount)},
		{Label: "Method", Value: payment.Method},
		{Label: "Status", Value: string(payment.Status)},
		{Label: "Date", Value: payment.UpdatedAt.Format("2006-01-02 15:04")},
	}
	data, err := s.receipt.Receipt("Payment Receipt", fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}
