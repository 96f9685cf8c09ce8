package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gh-Constant/IUT-homework/internal/models"
	"github.com/gh-Constant/IUT-homework/internal/service"
)

type cachingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// FeedCache caches GET responses in Redis per authenticated user. The key
// includes the user id so one viewer never sees another viewer's feed, and
// every mutation bumps a generation counter that invalidates all entries.
func FeedCache(client *redis.Client, metricsSvc *service.MetricsService, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		ctx := c.Request.Context()
		gen, err := client.Get(ctx, "feed:generation").Result()
		if err != nil && err != redis.Nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("feed:%s:%s:%s?%s", gen, claims.UserID, c.Request.URL.Path, c.Request.URL.RawQuery)

		if cached, err := client.Get(ctx, key).Result(); err == nil {
			if metricsSvc != nil {
				metricsSvc.RecordCacheOperation("feed", "hit")
			}
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}
		if metricsSvc != nil {
			metricsSvc.RecordCacheOperation("feed", "miss")
		}

		writer := &cachingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Next()

		if c.Writer.Status() == http.StatusOK && writer.body.Len() > 0 {
			if err := client.Set(ctx, key, writer.body.String(), ttl).Err(); err != nil {
				logger.Warn("failed to store feed cache entry", zap.Error(err))
			}
		}
	}
}

// InvalidateFeedCache bumps the cache generation after successful mutations.
func InvalidateFeedCache(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if client == nil || c.Request.Method == http.MethodGet {
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Incr(ctx, "feed:generation").Err()
	}
}
