package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"siteforge/internal/agents"
	"siteforge/internal/generator"
	"siteforge/internal/tokens"
	"siteforge/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type generateFixture struct {
	db     *gorm.DB
	store  *agents.SessionStore
	router *gin.Engine
	user   *models.User
}

func newGenerateFixture(t *testing.T) *generateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Project{},
		&models.GenerationSession{}, &models.AgentPlan{},
	))

	user := &models.User{
		Username:         "tester",
		Email:            "tester@example.com",
		PasswordHash:     "x",
		SubscriptionTier: "free",
		TokenBalance:     tokens.FreeTierAllotment,
		LastReset:        time.Now(),
	}
	require.NoError(t, db.Create(user).Error)

	ledger := tokens.NewLedger(db, nil, nil)
	store := agents.NewSessionStore(db, nil, nil)
	registry := agents.NewRegistry().ScaleDurations(0.0001)
	orch := agents.NewOrchestrator(registry, store, nil)
	gen := generator.NewService(db, ledger, store, orch, nil, nil)

	h := NewHandler(db, nil, ledger, gen, nil, nil, nil)

	router := gin.New()
	authed := router.Group("/api")
	authed.Use(func(c *gin.Context) {
		c.Set("user_id", user.ID)
		c.Next()
	})
	authed.POST("/generate", h.Generate)
	authed.POST("/generate/estimate", h.EstimateCost)
	authed.GET("/tokens/balance", h.GetBalance)

	// Same routes without the identity stub.
	anon := router.Group("/anon")
	anon.POST("/generate", h.Generate)

	return &generateFixture{db: db, store: store, router: router, user: user}
}

func (f *generateFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *generateFixture) balance(t *testing.T) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, f.user.ID).Error)
	return user.TokenBalance
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGenerateMissingPrompt(t *testing.T) {
	f := newGenerateFixture(t)

	for _, body := range []string{`{}`, `{"prompt":""}`, `{"prompt":"   "}`, `{"prompt":null}`} {
		w := f.post(t, "/api/generate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
		assert.NotEmpty(t, decodeBody(t, w)["error"])
	}

	// Validation failures never touch the ledger or create sessions.
	assert.Equal(t, int64(tokens.FreeTierAllotment), f.balance(t))
	assert.Empty(t, f.store.List(f.user.ID))
}

func TestGenerateNonStringPrompt(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", `{"prompt":12345}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "string")
	assert.Empty(t, f.store.List(f.user.ID))
}

func TestGenerateOversizedPrompt(t *testing.T) {
	f := newGenerateFixture(t)

	long := strings.Repeat("a", 1001)
	w := f.post(t, "/api/generate", fmt.Sprintf(`{"prompt":%q}`, long))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, int64(tokens.FreeTierAllotment), f.balance(t))
	assert.Empty(t, f.store.List(f.user.ID))

	// Exactly 1000 characters passes validation.
	ok := f.post(t, "/api/generate", fmt.Sprintf(`{"prompt":%q}`, strings.Repeat("a", 1000)))
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestGenerateOversizedBusinessName(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", fmt.Sprintf(`{"prompt":"a site","businessName":%q}`, strings.Repeat("b", 101)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.List(f.user.ID))
}

func TestGenerateInvalidWebsiteType(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", `{"prompt":"a site","websiteType":"casino"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "websiteType")
	assert.Empty(t, f.store.List(f.user.ID))
}

func TestGenerateSuccess(t *testing.T) {
	f := newGenerateFixture(t)

	prompt := strings.Repeat("p", 50) // 1000 + 1*50 = 1050 tokens
	w := f.post(t, "/api/generate", fmt.Sprintf(`{"prompt":%q,"businessName":"Acme Studio","websiteType":"portfolio"}`, prompt))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Acme Studio", body["businessName"])
	assert.Equal(t, "portfolio", body["websiteType"])

	html, _ := body["html"].(string)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "Acme Studio")
	assert.Contains(t, html, `<html lang="en">`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(html), "</html>"))

	_, err := time.Parse(time.RFC3339, body["generatedAt"].(string))
	assert.NoError(t, err, "generatedAt must be ISO-8601")

	// 150000 - 1050.
	assert.Equal(t, int64(148950), f.balance(t))

	sessions := f.store.List(f.user.ID)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionCompleted, sessions[0].Status)
	assert.Len(t, sessions[0].Plans, 5)
}

func TestGenerateSanitizesAngleBrackets(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", `{"prompt":"a site","businessName":"<script>Evil</script> Co"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "scriptEvil/script Co", body["businessName"])
	html := body["html"].(string)
	assert.NotContains(t, html, "<script>Evil")
}

func TestGeneratePreservesAmpersand(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", `{"prompt":"a site","businessName":"Test & Co"}`)
	require.Equal(t, http.StatusOK, w.Code)

	html := decodeBody(t, w)["html"].(string)
	assert.Contains(t, html, "Test & Co")
	assert.NotContains(t, html, "Test &amp; Co")
}

func TestGenerateOmitsWebsiteTypeWhenAbsent(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate", `{"prompt":"a site"}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, present := decodeBody(t, w)["websiteType"]
	assert.False(t, present)
}

func TestGenerateInsufficientTokens(t *testing.T) {
	f := newGenerateFixture(t)
	require.NoError(t, f.db.Model(f.user).Updates(map[string]any{
		"token_balance":     100,
		"subscription_tier": "pro", // no free-tier refresh
	}).Error)

	w := f.post(t, "/api/generate", `{"prompt":"a site"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, int64(100), f.balance(t))
	assert.Empty(t, f.store.List(f.user.ID))
}

func TestGenerateRequiresAuth(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/anon/generate", `{"prompt":"a site"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEstimateCostEndpoint(t *testing.T) {
	f := newGenerateFixture(t)

	w := f.post(t, "/api/generate/estimate", `{"prompt":"hello","screenshot":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	// 1000 base + 50 for one chunk + 2000 screenshot.
	assert.Equal(t, float64(3050), data["cost"])
}
