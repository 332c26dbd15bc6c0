package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/pubdesk-api/internal/models"
)

func TestPublicationHandlerSubmitRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPublicationHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/publications", nil)

	handler.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicationHandlerForwardRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPublicationHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/publications/pub-1/forward", strings.NewReader("not json"))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "pub-1"}}

	handler.Forward(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicationHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPublicationHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/publications/download", nil)

	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicationFilterFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/publications?status=published&category=ai&search=neural&page=2&limit=10", nil)

	filter := publicationFilterFromQuery(c)

	assert.NotNil(t, filter.Status)
	assert.Equal(t, models.StatusPublished, *filter.Status)
	assert.Equal(t, "ai", filter.Category)
	assert.Equal(t, "neural", filter.Search)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 10, filter.PageSize)
}

func TestFormListSplitsCommaSeparatedValues(t *testing.T) {
	gin.SetMode(gin.TestMode)

	form := url.Values{}
	form.Add("authors", "Ada Lovelace, Alan Turing")
	form.Add("authors", "Grace Hopper")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/publications", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values := formList(c, "authors")

	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"}, values)
}

func TestFormListIgnoresEmptyEntries(t *testing.T) {
	gin.SetMode(gin.TestMode)

	form := url.Values{}
	form.Add("keywords", " , ,ml")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/publications", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values := formList(c, "keywords")

	assert.Equal(t, []string{"ml"}, values)
}
