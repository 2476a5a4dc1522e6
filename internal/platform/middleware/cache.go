package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CacheConfig controls ETag handling for reference data such as the lab
// catalog. Only GET and HEAD requests whose path starts with one of Paths
// are buffered.
type CacheConfig struct {
	Paths   []string
	MaxAge  int
	Private bool
}

// DefaultCacheConfig caches the lab catalog for five minutes per client.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Paths:   []string{"/api/v1/lab-catalog"},
		MaxAge:  300,
		Private: true,
	}
}

// bufferedResponseWriter holds the body so the ETag can be computed before
// anything reaches the client.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *bufferedResponseWriter) Header() http.Header         { return w.writer.Header() }
func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *bufferedResponseWriter) WriteHeader(code int)        { w.statusCode = code }

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ETag sets ETag and Cache-Control on successful responses for the configured
// paths and answers 304 when If-None-Match matches.
func ETag(config CacheConfig) echo.MiddlewareFunc {
	cacheControl := buildCacheControl(config)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if !matchesPrefix(req.URL.Path, config.Paths) {
				return next(c)
			}

			res := c.Response()
			origWriter := res.Writer
			buf := &bufferedResponseWriter{writer: origWriter, statusCode: http.StatusOK}
			res.Writer = buf

			err := next(c)
			res.Writer = origWriter
			if err != nil {
				return err
			}
			if buf.statusCode >= 400 {
				return buf.flushTo()
			}

			// Overrides the no-store set for PHI responses.
			res.Header().Set("Cache-Control", cacheControl)
			etag := computeETag(buf.buf.Bytes())
			res.Header().Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				res.Status = http.StatusNotModified
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

// computeETag returns a weak ETag over the body.
func computeETag(body []byte) string {
	hash := sha256.Sum256(body)
	return fmt.Sprintf(`W/"%x"`, hash[:16])
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func buildCacheControl(config CacheConfig) string {
	scope := "public"
	if config.Private {
		scope = "private"
	}
	return fmt.Sprintf("%s, max-age=%d", scope, config.MaxAge)
}

// etagMatch checks an If-None-Match value against etag using weak
// comparison. Supports comma-separated lists and "*".
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
