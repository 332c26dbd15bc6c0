package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pubdesk-api/internal/service"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/response"
)

// EmailHandler exposes outbound email and security alert endpoints.
type EmailHandler struct {
	notifications *service.NotificationService
}

// NewEmailHandler constructs EmailHandler.
func NewEmailHandler(notifications *service.NotificationService) *EmailHandler {
	return &EmailHandler{notifications: notifications}
}

// Send godoc
// @Summary Send email
// @Description Sends an email through the configured mail transport
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body service.SendEmailRequest true "Email payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /emails [post]
func (h *EmailHandler) Send(c *gin.Context) {
	var req service.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.notifications.SendEmail(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"status": "queued"})
}

// SecurityAlert godoc
// @Summary Report security event
// @Description Records a security log entry and alerts administrators
// @Tags Security
// @Accept json
// @Produce json
// @Param payload body service.SecurityAlertRequest true "Alert payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /security/alert [post]
func (h *EmailHandler) SecurityAlert(c *gin.Context) {
	var req service.SecurityAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.GetHeader("User-Agent")
	}
	if claims := claimsFromContext(c); claims != nil {
		req.UserID = claims.UserID
	}

	if err := h.notifications.SecurityAlert(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"status": "recorded"})
}

// SecurityLogs godoc
// @Summary Recent security logs
// @Tags Security
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /security/logs [get]
func (h *EmailHandler) SecurityLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.notifications.RecentSecurityLogs(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
