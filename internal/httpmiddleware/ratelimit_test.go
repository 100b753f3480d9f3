package httpmiddleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/httpmiddleware"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := httpmiddleware.NewTokenBucket(2, 60).WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "refill is capped at capacity")
}

func TestGinMiddlewareRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limited := 0
	l := httpmiddleware.NewTokenBucket(1, 1)
	l.OnLimited = func() { limited++ }

	r := gin.New()
	r.Use(l.GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, limited)
}

func TestGinMiddlewareKeyed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := httpmiddleware.NewTokenBucket(1, 1)

	r := gin.New()
	r.Use(l.GinMiddlewareKeyed(func(c *gin.Context) string { return c.GetHeader("X-User") }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("alice"))
	assert.Equal(t, http.StatusTooManyRequests, get("alice"))
	assert.Equal(t, http.StatusOK, get("bob"), "same IP, different key")
	assert.Equal(t, http.StatusOK, get(""), "empty key falls back to the IP bucket")
	assert.Equal(t, http.StatusTooManyRequests, get(""))
}

func TestPruneDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := httpmiddleware.NewTokenBucket(2, 60).WithClock(func() time.Time { return now })

	l.Allow("old")
	now = now.Add(time.Second)
	l.Allow("recent")
	require.Equal(t, 2, l.Len())

	// Two tokens at one per second: "old" is full again, "recent" is not.
	now = now.Add(time.Second)
	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())

	now = now.Add(time.Minute)
	assert.Equal(t, 1, l.Prune())
	assert.Zero(t, l.Len())
}
