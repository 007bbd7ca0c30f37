package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var secret = []byte("test-secret")

func sign(t *testing.T, key []byte, claims jwt.MapClaims) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func protectedRouter(validate Validator) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(validate), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func TestLocalAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	testCases := []struct {
		name   string
		header string

		expectCode int
		expectUser string
	}{
		{
			name:       "Valid access token",
			header:     "Bearer " + sign(t, secret, jwt.MapClaims{"user_id": "alice", "exp": exp}),
			expectCode: http.StatusOK,
			expectUser: "alice",
		}, {
			name:       "Refresh token",
			header:     "Bearer " + sign(t, secret, jwt.MapClaims{"user_id": "alice", "type": "refresh", "exp": exp}),
			expectCode: http.StatusUnauthorized,
		}, {
			name:       "Wrong secret",
			header:     "Bearer " + sign(t, []byte("other"), jwt.MapClaims{"user_id": "alice", "exp": exp}),
			expectCode: http.StatusUnauthorized,
		}, {
			name:       "Expired",
			header:     "Bearer " + sign(t, secret, jwt.MapClaims{"user_id": "alice", "exp": time.Now().Add(-time.Hour).Unix()}),
			expectCode: http.StatusUnauthorized,
		}, {
			name:       "No user id",
			header:     "Bearer " + sign(t, secret, jwt.MapClaims{"exp": exp}),
			expectCode: http.StatusUnauthorized,
		}, {
			name:       "Not a bearer header",
			header:     "Basic abc",
			expectCode: http.StatusUnauthorized,
		}, {
			name:       "Missing header",
			expectCode: http.StatusUnauthorized,
		},
	}

	r := protectedRouter(NewValidator(string(secret), "http://unused"))
	for _, testCase := range testCases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if testCase.header != "" {
			req.Header.Set("Authorization", testCase.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, testCase.expectCode, w.Code, testCase.name)
		if testCase.expectCode == http.StatusOK {
			assert.Equal(t, testCase.expectUser, w.Body.String(), testCase.name)
		}
	}
}

func TestRemoteAuth(t *testing.T) {
	authService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/validate-token", r.URL.Path)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] == "good" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": true, "user_id": "bob"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": false, "error": "invalid token"})
	}))
	defer authService.Close()

	r := protectedRouter(NewValidator("", authService.URL))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(60, 2)
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/submit", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User"))
	}, l.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("alice"))
	assert.Equal(t, http.StatusOK, post("alice"))
	assert.Equal(t, http.StatusTooManyRequests, post("alice"), "burst exhausted")
	assert.Equal(t, http.StatusOK, post("bob"), "buckets are per user")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, post("alice"), "one token per second refills")

	now = now.Add(time.Hour)
	post("carol")
	assert.Len(t, l.visitors, 1, "idle buckets are swept")
}
