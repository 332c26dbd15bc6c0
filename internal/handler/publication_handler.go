package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/service"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/response"
)

// PublicationHandler exposes manuscript lifecycle endpoints.
type PublicationHandler struct {
	publications *service.PublicationService
	exports      *service.ExportService
}

// NewPublicationHandler constructs PublicationHandler.
func NewPublicationHandler(publications *service.PublicationService, exports *service.ExportService) *PublicationHandler {
	return &PublicationHandler{publications: publications, exports: exports}
}

// Submit godoc
// @Summary Submit manuscript
// @Description Submit a manuscript with its document as multipart form data
// @Tags Publications
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param authors formData string true "Authors, repeat the field or separate with commas"
// @Param abstract formData string true "Abstract"
// @Param keywords formData string false "Keywords"
// @Param category formData string true "Category"
// @Param type formData string true "Publication type"
// @Param file formData file true "Manuscript document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /publications [post]
func (h *PublicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.SubmitPublicationRequest{
		Title:    strings.TrimSpace(c.PostForm("title")),
		Abstract: strings.TrimSpace(c.PostForm("abstract")),
		Category: strings.TrimSpace(c.PostForm("category")),
		Type:     strings.TrimSpace(c.PostForm("type")),
		Authors:  formList(c, "authors"),
		Keywords: formList(c, "keywords"),
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	req.File = src
	req.FileName = fileHeader.Filename
	req.FileSize = fileHeader.Size
	req.ContentType = fileHeader.Header.Get("Content-Type")
	req.OwnerID = claims.UserID
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	pub, err := h.publications.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pub)
}

// List godoc
// @Summary List publications
// @Description Lists publications visible to the caller. Anonymous callers see published work only.
// @Tags Publications
// @Produce json
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param search query string false "Search title and abstract"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /publications [get]
func (h *PublicationHandler) List(c *gin.Context) {
	filter := publicationFilterFromQuery(c)

	pubs, total, err := h.publications.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pubs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Get godoc
// @Summary Get publication detail
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /publications/{id} [get]
func (h *PublicationHandler) Get(c *gin.Context) {
	pub, err := h.publications.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pub, nil)
}

// Forward godoc
// @Summary Forward to reviewers
// @Description Routes a paid pending manuscript to the given reviewers
// @Tags Publications
// @Accept json
// @Produce json
// @Param id path string true "Publication ID"
// @Param payload body service.ForwardRequest true "Reviewer assignment"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publications/{id}/forward [post]
func (h *PublicationHandler) Forward(c *gin.Context) {
	var req service.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pub, err := h.publications.ForwardToReviewers(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pub, nil)
}

// Decide godoc
// @Summary Record reviewer decision
// @Tags Publications
// @Accept json
// @Produce json
// @Param id path string true "Publication ID"
// @Param payload body service.DecisionRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publications/{id}/decision [post]
func (h *PublicationHandler) Decide(c *gin.Context) {
	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pub, err := h.publications.RecordDecision(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pub, nil)
}

// Finalize godoc
// @Summary Finalize reviewed manuscript
// @Description Publishes or rejects a reviewed manuscript matching the reviewer verdict
// @Tags Publications
// @Accept json
// @Produce json
// @Param id path string true "Publication ID"
// @Param payload body service.FinalizeRequest true "Terminal status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publications/{id}/finalize [post]
func (h *PublicationHandler) Finalize(c *gin.Context) {
	var req service.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pub, err := h.publications.Finalize(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pub, nil)
}

// Delete godoc
// @Summary Delete publication
// @Description Soft-deletes a publication. Authors may delete their own pending submissions.
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /publications/{id} [delete]
func (h *PublicationHandler) Delete(c *gin.Context) {
	if err := h.publications.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Issue signed download link
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /publications/{id}/download-url [get]
func (h *PublicationHandler) DownloadURL(c *gin.Context) {
	url, expires, err := h.publications.DownloadURL(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url, "expires_at": expires}, nil)
}

// Download godoc
// @Summary Download document by signed token
// @Tags Publications
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /publications/download [get]
func (h *PublicationHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	pub, file, err := h.publications.OpenDocument(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}

	name := filepath.Base(pub.DocumentPath)
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

// Statuses godoc
// @Summary Status catalog
// @Description Lists every publication status with its label and style class
// @Tags Publications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /publications/statuses [get]
func (h *PublicationHandler) Statuses(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.publications.StatusCatalog(), nil)
}

// ExportCSV godoc
// @Summary Export publications as CSV
// @Tags Publications
// @Produce text/csv
// @Param status query string false "Filter by status"
// @Success 200 {file} binary
// @Router /publications/export [get]
func (h *PublicationHandler) ExportCSV(c *gin.Context) {
	filter := publicationFilterFromQuery(c)

	data, err := h.exports.PublicationsCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	name := "publications-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv", data)
}

func publicationFilterFromQuery(c *gin.Context) models.PublicationFilter {
	var filter models.PublicationFilter
	if status := c.Query("status"); status != "" {
		s := models.PublicationStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	filter.Category = c.Query("category")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

func formList(c *gin.Context, field string) []string {
	values := c.PostFormArray(field)
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
