package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache implementa cache.Client com um mapa, suficiente para o rate limiter.
type memoryCache struct {
	mu   sync.Mutex
	vals map[string]int
}

func newMemoryCache() *memoryCache { return &memoryCache{vals: map[string]int{}} }

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	n, err := c.GetInt(ctx, key)
	return strconv.Itoa(n), err
}
func (c *memoryCache) GetInt(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.vals[key]
	if !ok {
		return 0, cache.ErrCacheMiss
	}
	return n, nil
}
func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = value.(int)
	return nil
}
func (c *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key]++
	return int64(c.vals[key]), nil
}
func (c *memoryCache) Delete(ctx context.Context, keys ...string) error { return nil }
func (c *memoryCache) Ping(ctx context.Context) error                   { return nil }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	h := RateLimiter(newMemoryCache(), 2, time.Minute, logger.NewLogger("error"))(okHandler)

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5001").Code)

	blocked := send("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Category)

	// Outro IP tem o próprio contador.
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code)
}

func TestAuthAndPermission(t *testing.T) {
	tokens := token.NewService("segredo", time.Hour)
	var seen Claims
	protected := NewAuthMiddleware(tokens)(PermissionMiddleware(token.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/products", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer lixo").Code)

	editor, err := tokens.GenerateToken("importador", token.RoleEditor)
	require.NoError(t, err)
	rec := call("Bearer " + editor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body.Category)

	admin, err := tokens.GenerateToken("ana", token.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call("Bearer "+admin).Code)
	assert.Equal(t, Claims{Subject: "ana", Role: token.RoleAdmin}, seen)
}
