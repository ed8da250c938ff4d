package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/logger"
	"github.com/gizilens/backend/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	handler := func(c *gin.Context) {
		id, role := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	}
	r.GET("/", handler)
	r.POST("/", handler)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	r := newEngine(APIKey("secret", logger.Discard()))

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"match", "secret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "secreT", http.StatusUnauthorized},
		{"prefix", "secretsecret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := serve(r, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"status":"fail","message":"Unauthorized."}`, rec.Body.String())
			}
		})
	}
}

func TestRequireJSON(t *testing.T) {
	r := newEngine(RequireJSON(logger.Discard()))

	for contentType, want := range map[string]int{
		"application/json":                http.StatusOK,
		"application/json; charset=utf-8": http.StatusOK,
		"text/plain":                      http.StatusUnsupportedMediaType,
		"":                                http.StatusUnsupportedMediaType,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := serve(r, req)
		assert.Equal(t, want, rec.Code, contentType)
		if want == http.StatusUnsupportedMediaType {
			assert.Contains(t, rec.Body.String(), "Unsupported Media Type.")
		}
	}
}

func TestBearerAuth(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issuedAt
	tokens := auth.NewTokenManager("access", "refresh").WithClock(func() time.Time { return now })

	access, err := tokens.CreateAccessToken(domain.TokenPayload{ID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	refresh, err := tokens.CreateRefreshToken(domain.TokenPayload{ID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	r := newEngine(BearerAuth(tokens, time.Hour, logger.Discard()))

	request := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		return serve(r, req)
	}

	rec := request("Bearer " + access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u-1","role":"admin"}`, rec.Body.String())

	rec = request("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request("Bearer " + refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized.")

	now = issuedAt.Add(2 * time.Hour)
	rec = request("Bearer " + access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token exceeded maximum age")
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://app.example"}, logger.Discard()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(r, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = serve(r, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := newEngine(CORS([]string{"*"}, logger.Discard()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3001", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_SubdomainPattern(t *testing.T) {
	r := newEngine(CORS([]string{"https://*.gizilens.id"}, logger.Discard()))

	tests := []struct {
		origin string
		want   int
	}{
		{origin: "https://app.gizilens.id", want: http.StatusOK},
		{origin: "https://admin.staging.gizilens.id", want: http.StatusOK},
		{origin: "https://gizilens.id", want: http.StatusForbidden},
		{origin: "http://app.gizilens.id", want: http.StatusForbidden},
		{origin: "https://evil.id/.gizilens.id", want: http.StatusForbidden},
		{origin: "https://evilgizilens.id", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rec := serve(r, req)
		assert.Equal(t, tt.want, rec.Code, tt.origin)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(newEngine(SecurityHeaders()), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
