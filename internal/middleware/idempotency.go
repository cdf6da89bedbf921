package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
	inFlightTTL       = 30 * time.Second
)

var mutatingMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// storedResponse is what a retry with the same key gets back.
type storedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

type idempotencyStore struct {
	client *redis.Client
}

func (s idempotencyStore) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s idempotencyStore) save(ctx context.Context, key string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, idempotencyTTL).Err()
}

// claim marks key as in flight. It reports false when another attempt holds it.
func (s idempotencyStore) claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key+":inflight", "1", inFlightTTL).Result()
}

func (s idempotencyStore) release(ctx context.Context, key string) {
	s.client.Del(ctx, key+":inflight")
}

// IdempotencyMiddleware replays the stored response of a mutating request
// retried with the same Idempotency-Key on the same route. A retry arriving
// while the first attempt is still running gets 409. Redis failures let the
// request through unprotected; a soundbox retry is still deduplicated by
// transaction id downstream.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if redisClient == nil || key == "" || !mutatingMethods[c.Request.Method] {
			c.Next()
			return
		}

		store := idempotencyStore{client: redisClient}
		ctx := c.Request.Context()
		storeKey := "idempotency:" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		prior, err := store.load(ctx, storeKey)
		switch {
		case err == nil:
			replay(c, prior)
			return
		case !errors.Is(err, redis.Nil):
			c.Next()
			return
		}

		claimed, err := store.claim(ctx, storeKey)
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "a request with this Idempotency-Key is in progress"})
			return
		}
		detached := context.WithoutCancel(ctx)
		defer store.release(detached, storeKey)

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := w.Status()
		if status < 200 || status >= 500 {
			return
		}
		_ = store.save(detached, storeKey, storedResponse{
			StatusCode:  status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
	}
}

func replay(c *gin.Context, resp *storedResponse) {
	c.Header(replayedHeader, "true")
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		c.AbortWithStatus(resp.StatusCode)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
	c.Abort()
}
