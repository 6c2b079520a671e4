package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(r http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 1, "X-Forwarded-For"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}}
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/", first).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodGet, "/", first).Code)

	other := http.Header{"X-Forwarded-For": {"203.0.113.8"}}
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/", other).Code)
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		value    string
		expected string
	}{
		{name: "First forwarded address", header: "X-Forwarded-For", value: "198.51.100.1, 10.0.0.1", expected: "198.51.100.1"},
		{name: "Single address", header: "X-Client-Addr", value: "198.51.100.2", expected: "198.51.100.2"},
		{name: "Header not configured", header: "", expected: "192.0.2.1"},
		{name: "Header missing", header: "X-Client-Addr", expected: "192.0.2.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = "192.0.2.1:1234"
			if tc.header != "" && tc.value != "" {
				c.Request.Header.Set(tc.header, tc.value)
			}
			assert.Equal(t, tc.expected, ClientIP(c, tc.header))
		})
	}
}

func TestCache(t *testing.T) {
	var generation uint64 = 1
	var hits int

	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute, func() uint64 { return generation }))
	r.GET("/status", func(c *gin.Context) {
		hits++
		c.Header("X-Handler", "yes")
		c.String(http.StatusOK, "generation %d", generation)
	})
	r.GET("/fail", func(c *gin.Context) {
		hits++
		c.String(http.StatusInternalServerError, "boom")
	})
	r.POST("/status", func(c *gin.Context) {
		hits++
		c.Status(http.StatusAccepted)
	})

	w := request(r, http.MethodGet, "/status", nil)
	assert.Equal(t, "generation 1", w.Body.String())
	w = request(r, http.MethodGet, "/status", nil)
	assert.Equal(t, "generation 1", w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "yes", w.Header().Get("X-Handler"))
	assert.Equal(t, 1, hits)

	generation = 2
	w = request(r, http.MethodGet, "/status", nil)
	assert.Equal(t, "generation 2", w.Body.String())
	assert.Equal(t, 2, hits)

	request(r, http.MethodGet, "/fail", nil)
	request(r, http.MethodGet, "/fail", nil)
	assert.Equal(t, 4, hits, "errors are not cached")

	request(r, http.MethodPost, "/status", nil)
	request(r, http.MethodPost, "/status", nil)
	assert.Equal(t, 6, hits, "only GET is cached")
}

func TestLogger(t *testing.T) {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	assert.Equal(t, http.StatusTeapot, request(r, http.MethodGet, "/", nil).Code)
}
