package middleware

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ysakura/event-campaign-backend/internal/config"
)

// bodyCapture forwards the response to the client while keeping a
// copy of the body so successful responses can be cached.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// cacheKey hashes the concrete request path, not the route template,
// so parameterized routes get one entry per resource.
func cacheKey(prefix string, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// NewReadCache caches successful GET JSON responses in Redis for the
// configured TTL.  Only status 200 bodies are stored; everything else
// passes through untouched.  With a nil Redis client the middleware
// is a no-op.  Cached availability may briefly lag the authoritative
// aggregate, which is acceptable for a read that is advisory anyway.
func NewReadCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)
			if body, err := rdb.Get(ctx, key).Result(); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(body))
			}

			capture := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = capture
			if err := next(c); err != nil {
				return err
			}
			contentType := c.Response().Header().Get(echo.HeaderContentType)
			if capture.status == http.StatusOK && strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
				_ = rdb.Set(ctx, key, capture.buf.String(), cfg.TTL).Err()
			}
			return nil
		}
	}
}
