package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rental_marketplace/internal/domain"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	users map[string]*domain.User
	err   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*domain.User)}
}

func (f *fakeUsers) EnsureUser(_ context.Context, identity domain.Identity) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[identity.ExternalID]; ok {
		return u, nil
	}
	u := &domain.User{ID: uuid.New(), ExternalID: identity.ExternalID, Role: domain.RoleUser, DisplayName: identity.DisplayName, ContactEmail: identity.Email}
	f.users[identity.ExternalID] = u
	return u, nil
}

func (f *fakeUsers) GetMe(context.Context, domain.Principal) (*domain.User, error) {
	return nil, apperrors.NotFound("user")
}

func (f *fakeUsers) ChangeUserRole(context.Context, domain.Principal, uuid.UUID, domain.Role) (*domain.User, error) {
	return nil, apperrors.NotFound("user")
}

func (f *fakeUsers) Promote(context.Context, string) (*domain.User, error) {
	return nil, apperrors.NotFound("user")
}

func mintToken(t *testing.T, secret, subject, issuer string, expires time.Time) string {
	t.Helper()
	claims := IdentityClaims{
		Email:       subject + "@example.test",
		DisplayName: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func principalEcho(c *gin.Context) {
	p := PrincipalFrom(c)
	c.JSON(http.StatusOK, gin.H{"id": p.UserID.String(), "role": p.Role})
}

func newIdentityRouter(users *fakeUsers, issuer string) *gin.Engine {
	m := NewIdentityMiddleware(testSecret, issuer, users, logger.Nop())
	r := gin.New()
	r.GET("/required", m.RequireAuth(), principalEcho)
	r.GET("/optional", m.OptionalAuth(), principalEcho)
	r.GET("/admin", m.RequireAuth(), RequireAdmin(), principalEcho)
	return r
}

func doRequest(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	users := newFakeUsers()
	r := newIdentityRouter(users, "")
	future := time.Now().Add(time.Hour)

	t.Run("missing token", func(t *testing.T) {
		w := doRequest(r, "/required", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/required", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := doRequest(r, "/required", mintToken(t, "other-secret", "alice", "", future))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		w := doRequest(r, "/required", mintToken(t, testSecret, "alice", "", time.Now().Add(-time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token provisions the user", func(t *testing.T) {
		w := doRequest(r, "/required", mintToken(t, testSecret, "alice", "", future))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, users.users, "alice")
		assert.Contains(t, w.Body.String(), users.users["alice"].ID.String())
	})

	t.Run("query token", func(t *testing.T) {
		w := doRequest(r, "/required?access_token="+mintToken(t, testSecret, "alice", "", future), "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuthChecksIssuer(t *testing.T) {
	r := newIdentityRouter(newFakeUsers(), "https://id.example.test")
	future := time.Now().Add(time.Hour)

	w := doRequest(r, "/required", mintToken(t, testSecret, "alice", "https://evil.example.test", future))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "/required", mintToken(t, testSecret, "alice", "https://id.example.test", future))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	users := newFakeUsers()
	r := newIdentityRouter(users, "")

	w := doRequest(r, "/optional", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())

	w = doRequest(r, "/optional", "not-a-jwt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())

	users.err = apperrors.Storage("upsert user", assert.AnError)
	w = doRequest(r, "/optional", mintToken(t, testSecret, "bob", "", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	users := newFakeUsers()
	r := newIdentityRouter(users, "")
	future := time.Now().Add(time.Hour)

	w := doRequest(r, "/admin", mintToken(t, testSecret, "carol", "", future))
	assert.Equal(t, http.StatusForbidden, w.Code)

	users.users["carol"].Role = domain.RoleAdmin
	w = doRequest(r, "/admin", mintToken(t, testSecret, "carol", "", future))
	assert.Equal(t, http.StatusOK, w.Code)
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) Consume(_ context.Context, key string, limit int, _ time.Duration) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.counts[key]++
	if l.counts[key] > limit {
		return 0, apperrors.New(apperrors.ErrRateLimited, "too many messages, slow down")
	}
	return limit - l.counts[key], nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{counts: make(map[string]int)}
	m := NewRateLimitMiddleware(limiter, logger.Nop())
	userID := uuid.New()

	r := gin.New()
	r.POST("/send", func(c *gin.Context) {
		SetPrincipal(c, domain.Principal{UserID: userID, Role: domain.RoleUser})
		c.Next()
	}, m.Limit("messages", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		return w
	}

	w := send()
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusCreated, send().Code)

	w = send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, 3, limiter.counts["ratelimit:messages:"+userID.String()])
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{counts: make(map[string]int), err: apperrors.Storage("increment", assert.AnError)}
	m := NewRateLimitMiddleware(limiter, logger.Nop())

	r := gin.New()
	r.POST("/send", m.Limit("messages", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(logger.Nop()))
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperrors.InvalidState("property has already been decided"))
	})
	r.GET("/storage", func(c *gin.Context) {
		_ = c.Error(apperrors.Storage("list properties", assert.AnError))
	})

	w := doRequest(r, "/conflict", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already been decided")

	w = doRequest(r, "/storage", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
