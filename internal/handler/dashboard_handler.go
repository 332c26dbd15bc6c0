package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/service"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/response"
)

type dashboardProvider interface {
	Author(ctx context.Context, userID string) (*service.AuthorDashboard, error)
	Reviewer(ctx context.Context, userID string) (*service.ReviewerDashboard, error)
	Admin(ctx context.Context) (*service.AdminDashboard, error)
}

// DashboardHandler exposes role-specific dashboard endpoints.
type DashboardHandler struct {
	dashboards dashboardProvider
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards dashboardProvider) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Author godoc
// @Summary Author dashboard
// @Description Submission overview for the signed-in author
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/author [get]
func (h *DashboardHandler) Author(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.dashboards.Author(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Reviewer godoc
// @Summary Reviewer dashboard
// @Description Assignment overview for the signed-in reviewer
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/reviewer [get]
func (h *DashboardHandler) Reviewer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.dashboards.Reviewer(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Admin godoc
// @Summary Admin dashboard
// @Description Platform-wide status counts, pending payments and revenue
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	dashboard, err := h.dashboards.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
