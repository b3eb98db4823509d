package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diticoms/service-desk/internal/handler"
	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine() http.Handler {
	gin.SetMode(gin.TestMode)
	tokens := middleware.NewTokens("secret", time.Hour)
	return New(Handlers{
		Auth:      handler.NewAuthHandler(nil, tokens),
		Tickets:   handler.NewTicketHandler(nil),
		Invoices:  handler.NewInvoiceHandler(nil, nil, nil),
		Settings:  handler.NewSettingsHandler(nil),
		Assistant: handler.NewAssistantHandler(nil, nil),
	}, tokens, zap.NewNop())
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	h := newEngine()

	w := get(h, PathHealth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	assert.Equal(t, http.StatusOK, get(h, PathReady).Code)
	assert.Equal(t, http.StatusFound, get(h, PathSwagger).Code)

	w = get(h, PathSwagger+"/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/api/v1/tickets")
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	h := newEngine()
	for _, p := range []string{"/api/v1/tickets", "/api/v1/auth/me", "/api/v1/settings", "/api/v1/reports/tickets.xlsx"} {
		assert.Equal(t, http.StatusUnauthorized, get(h, p).Code, p)
	}
}
