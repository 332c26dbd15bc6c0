package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pubdesk-api/internal/service"
	"github.com/noah-isme/pubdesk-api/pkg/response"
)

// ReviewerHandler exposes the reviewer pool directory.
type ReviewerHandler struct {
	reviewers *service.ReviewerService
}

// NewReviewerHandler constructs ReviewerHandler.
func NewReviewerHandler(reviewers *service.ReviewerService) *ReviewerHandler {
	return &ReviewerHandler{reviewers: reviewers}
}

// Pool godoc
// @Summary List available reviewers
// @Description Lists active reviewers, optionally narrowed by specialization or institution
// @Tags Reviewers
// @Produce json
// @Param specialization query string false "Filter by specialization"
// @Param institution query string false "Filter by institution"
// @Success 200 {object} response.Envelope
// @Router /reviewers [get]
func (h *ReviewerHandler) Pool(c *gin.Context) {
	filter := service.ReviewerPoolFilter{
		Specialization: strings.TrimSpace(c.Query("specialization")),
		Institution:    strings.TrimSpace(c.Query("institution")),
	}

	reviewers, err := h.reviewers.Pool(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviewers, nil)
}
