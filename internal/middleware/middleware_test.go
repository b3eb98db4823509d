package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var admin = model.User{Username: "boss", Name: "Boss", Role: model.RoleAdmin}
var tech = model.User{Username: "minh", Name: "Minh", Role: model.RoleUser, AssociatedTech: "Minh"}

func protected(tokens *Tokens, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	handlers := append([]gin.HandlerFunc{JWTAuth(tokens)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, UserFrom(c))
	})
	r.GET("/me", handlers...)
	return r
}

func TestRequestID(t *testing.T) {
	r := protected(NewTokens("s", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}

func TestJWTAuth(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	token, exp, err := tokens.Issue(tech)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	r := protected(tokens)

	cases := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"bearer", "Bearer " + token, "", http.StatusOK},
		{"lowercase scheme", "bearer " + token, "", http.StatusOK},
		{"query param", "", "?token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"basic scheme", "Basic " + token, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"username":"minh"`)
			}
		})
	}
}

func TestTokens_RejectsForeignSecretAndExpiry(t *testing.T) {
	token, _, err := NewTokens("other", time.Hour).Issue(admin)
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer := NewTokens("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := issuer.Issue(admin)
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Minute).Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAdmin(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	r := protected(tokens, RequireAdmin())

	for _, tc := range []struct {
		user model.User
		code int
	}{{admin, http.StatusOK}, {tech, http.StatusForbidden}} {
		token, _, err := tokens.Issue(tc.user)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.code, w.Code, tc.user.Username)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
