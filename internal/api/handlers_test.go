package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marcvidal/linkshortener/internal/cache"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/services"
	"github.com/marcvidal/linkshortener/internal/shortcode"
)

type testAPI struct {
	router   *gin.Engine
	linkRepo *repository.GormLinkRepository
}

// newTestAPI wires the full HTTP surface against an in-memory database,
// without QR generation, geo lookup or background workers.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Link{}, &models.Click{}))

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	resolutionCache, err := cache.New(64)
	require.NoError(t, err)

	links := services.NewLinkService(linkRepo, clickRepo, shortcode.NewGenerator(0), resolutionCache, nil, "http://localhost:8080")
	resolver := services.NewResolverService(linkRepo, resolutionCache, nil)
	analytics := services.NewAnalyticsService(linkRepo, clickRepo)

	router := gin.New()
	SetupRoutes(router, Deps{
		Links:             links,
		Resolver:          resolver,
		Analytics:         analytics,
		DefaultWindowDays: 30,
	})

	return &testAPI{router: router, linkRepo: linkRepo}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:54321"
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seedLink(t *testing.T, link models.Link) *models.Link {
	t.Helper()
	require.NoError(t, a.linkRepo.CreateLink(&link))
	return &link
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}

func TestCreateLink(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/api/v1/links", gin.H{
		"original_url": "https://example.com/page",
		"title":        "Example",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	payload := decodeJSON(t, w)
	assert.Len(t, payload["short_code"], 8)
	assert.Equal(t, "https://example.com/page", payload["original_url"])
	assert.Equal(t, "http://localhost:8080/"+payload["short_code"].(string), payload["short_url"])
	assert.Equal(t, true, payload["is_active"])
}

func TestCreateLinkRejectsBadURL(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/api/v1/links", gin.H{"original_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLinkAliasConflict(t *testing.T) {
	a := newTestAPI(t)

	first := a.do(http.MethodPost, "/api/v1/links", gin.H{
		"original_url": "https://example.com",
		"custom_alias": "promo",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := a.do(http.MethodPost, "/api/v1/links", gin.H{
		"original_url": "https://other.example",
		"custom_alias": "promo",
	})
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestRedirect(t *testing.T) {
	a := newTestAPI(t)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com/page", ShortCode: "abc12345", IsActive: true})

	w := a.do(http.MethodGet, "/abc12345", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
}

func TestRedirectUnknownCode(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/nothere1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirectExpiredLink(t *testing.T) {
	a := newTestAPI(t)
	expired := time.Now().Add(-time.Hour)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", IsActive: true, ExpiresAt: &expired})

	w := a.do(http.MethodGet, "/abc12345", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirectPasswordProtected(t *testing.T) {
	a := newTestAPI(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a.seedLink(t, models.Link{
		OriginalURL:       "https://example.com",
		ShortCode:         "abc12345",
		IsActive:          true,
		PasswordProtected: true,
		PasswordHash:      string(hash),
	})

	noPassword := a.do(http.MethodGet, "/abc12345", nil)
	assert.Equal(t, http.StatusUnauthorized, noPassword.Code)
	assert.Equal(t, true, decodeJSON(t, noPassword)["password_required"])

	wrong := a.do(http.MethodGet, "/abc12345?password=nope", nil)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	right := a.do(http.MethodGet, "/abc12345?password=s3cret", nil)
	assert.Equal(t, http.StatusFound, right.Code)
	assert.Equal(t, "https://example.com", right.Header().Get("Location"))
}

func TestVerifyPassword(t *testing.T) {
	a := newTestAPI(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a.seedLink(t, models.Link{
		OriginalURL:       "https://example.com",
		ShortCode:         "abc12345",
		IsActive:          true,
		PasswordProtected: true,
		PasswordHash:      string(hash),
	})

	good := a.do(http.MethodPost, "/abc12345/verify-password", gin.H{"password": "s3cret"})
	require.Equal(t, http.StatusOK, good.Code)
	assert.Equal(t, true, decodeJSON(t, good)["valid"])

	bad := a.do(http.MethodPost, "/abc12345/verify-password", gin.H{"password": "nope"})
	require.Equal(t, http.StatusOK, bad.Code)
	assert.Equal(t, false, decodeJSON(t, bad)["valid"])
}

func TestLinkInfo(t *testing.T) {
	a := newTestAPI(t)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", Title: "Example", IsActive: true})

	w := a.do(http.MethodGet, "/abc12345/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decodeJSON(t, w)
	assert.Equal(t, "https://example.com", payload["original_url"])
	assert.Equal(t, "Example", payload["title"])
}

func TestListLinks(t *testing.T) {
	a := newTestAPI(t)

	empty := a.do(http.MethodGet, "/api/v1/links", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Equal(t, "[]", strings.TrimSpace(empty.Body.String()))

	a.seedLink(t, models.Link{OriginalURL: "https://a.example", ShortCode: "aaa11111", IsActive: true})
	a.seedLink(t, models.Link{OriginalURL: "https://b.example", ShortCode: "bbb22222", IsActive: true})

	w := a.do(http.MethodGet, "/api/v1/links", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload, 2)
	codes := []string{payload[0]["short_code"].(string), payload[1]["short_code"].(string)}
	assert.ElementsMatch(t, []string{"aaa11111", "bbb22222"}, codes)
}

func TestGetUpdateDeleteLink(t *testing.T) {
	a := newTestAPI(t)
	link := a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", IsActive: true})

	base := "/api/v1/links/1"

	got := a.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "abc12345", decodeJSON(t, got)["short_code"])

	updated := a.do(http.MethodPut, base, gin.H{
		"original_url": "https://example.com/v2",
		"title":        "New title",
	})
	require.Equal(t, http.StatusOK, updated.Code)
	assert.Equal(t, "https://example.com/v2", decodeJSON(t, updated)["original_url"])

	deleted := a.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, deleted.Code)

	_, err := a.linkRepo.GetLinkByID(link.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestToggleLink(t *testing.T) {
	a := newTestAPI(t)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", IsActive: true})

	w := a.do(http.MethodPatch, "/api/v1/links/1/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeJSON(t, w)["is_active"])

	// Toggling again re-enables resolution
	w = a.do(http.MethodPatch, "/api/v1/links/1/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w)["is_active"])
}

func TestAnalyticsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", IsActive: true})

	w := a.do(http.MethodGet, "/api/v1/links/1/analytics?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary services.LinkAnalytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "abc12345", summary.ShortCode)
	assert.Len(t, summary.DailyClicks, 7)
	assert.Len(t, summary.HourlyClicks, 24)
}

func TestAnalyticsUnknownLink(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/api/v1/links/99/analytics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.seedLink(t, models.Link{OriginalURL: "https://example.com", ShortCode: "abc12345", IsActive: true})

	w := a.do(http.MethodGet, "/api/v1/stats/abc12345", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decodeJSON(t, w)
	assert.Equal(t, "abc12345", payload["short_code"])
	assert.Equal(t, float64(0), payload["total_clicks"])
}

func TestInvalidLinkID(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/api/v1/links/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
