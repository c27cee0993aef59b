package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/config"
)

// ResponseCache stores successful GET responses in Redis.  Keys are grouped
// per route so a write can purge every cached variant of that route.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewResponseCache(cfg config.CacheConfig, rdb redis.UniversalClient, log *zap.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

// cachedResponse is the stored form of one response.
type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct"`
	Body        []byte `json:"b"`
}

// bodyRecorder forwards writes to the client and keeps a bounded copy.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Handler caches the wrapped route.  Disabled config or no Redis passes
// through.
func (rc *ResponseCache) Handler() echo.MiddlewareFunc {
	if rc == nil || !rc.cfg.Enabled || rc.rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.key(c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(bs, &cr) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(cr.Status, cr.ContentType, cr.Body)
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// Purge removes every cached variant of route, e.g. "/api/amenities".
func (rc *ResponseCache) Purge(ctx context.Context, route string) error {
	if rc == nil || rc.rdb == nil {
		return nil
	}
	iter := rc.rdb.Scan(ctx, 0, rc.routePrefix(route)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.rdb.Del(ctx, keys...).Err()
}

func (rc *ResponseCache) routePrefix(route string) string {
	return rc.cfg.Prefix + ":" + route + ":"
}

// key is <prefix>:<route>:<sha1 of the variant>.  The variant covers the
// query string and, with the default strategy, the caller's role so admins
// and residents never share an entry.
func (rc *ResponseCache) key(c echo.Context) string {
	variant := []string{c.Request().Method}
	switch rc.cfg.KeyStrategy {
	case "route":
	case "route_query":
		variant = append(variant, c.Request().URL.RawQuery)
	default:
		variant = append(variant, c.Request().URL.RawQuery, AppContextFrom(c).Role.String())
	}
	sum := sha1.Sum([]byte(strings.Join(variant, "|")))
	return fmt.Sprintf("%s%x", rc.routePrefix(c.Path()), sum[:])
}
