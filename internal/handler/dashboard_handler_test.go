package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/pubdesk-api/internal/middleware"
	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/service"
)

type fakeDashboardSrv struct {
	authorResp   *service.AuthorDashboard
	authorErr    error
	reviewerResp *service.ReviewerDashboard
	adminResp    *service.AdminDashboard
	lastAuthorID string
}

func (f *fakeDashboardSrv) Author(_ context.Context, userID string) (*service.AuthorDashboard, error) {
	f.lastAuthorID = userID
	return f.authorResp, f.authorErr
}

func (f *fakeDashboardSrv) Reviewer(context.Context, string) (*service.ReviewerDashboard, error) {
	return f.reviewerResp, nil
}

func (f *fakeDashboardSrv) Admin(context.Context) (*service.AdminDashboard, error) {
	return f.adminResp, nil
}

func TestDashboardHandlerAuthorRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/author", nil)

	handler.Author(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerAuthorSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{authorResp: &service.AuthorDashboard{TotalSubmitted: 3}}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/author", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "author-1", Role: models.RoleAuthor})

	handler.Author(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "author-1", srv.lastAuthorID)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(3), envelope.Data["total_submitted"])
}

func TestDashboardHandlerAdminForbiddenForAuthors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{adminResp: &service.AdminDashboard{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "author-1", Role: models.RoleAuthor})

	handler.Admin(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{adminResp: &service.AdminDashboard{TotalRevenue: 150}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
