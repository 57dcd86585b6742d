package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/handlers/userctx"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	idempotencyPrefix = "idempotency:v1:"
	inProgressMarker  = "__in_progress__"
	storeTimeout      = 2 * time.Second
)

type errorLogger interface {
	Error(msg string, args ...any)
}

type storedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Capture response to store it after the handler finished
type recordWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

func (w *recordWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Idempotency replays the stored response for repeated requests with the same Idempotency-Key.
// Requests without the header are passed as is.
// Keys are scoped by authenticated user, method and path.
func Idempotency(cache *redis.Client, ttl time.Duration, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := idempotencyPrefix + r.Method + ":" + r.URL.Path + ":" + key
			if user, ok := userctx.FromContext(r.Context()); ok {
				cacheKey = idempotencyPrefix + user.ID.String() + ":" + r.Method + ":" + r.URL.Path + ":" + key
			}

			ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
			defer cancel()

			cached, err := cache.Get(ctx, cacheKey).Bytes()
			switch {
			case err == nil:
				replay(w, cached, l)
				return
			case !errors.Is(err, redis.Nil):
				l.Error("Idempotency lookup failed", "key", key, "error", err)
				render.ServiceError(w, "Idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}

			reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
			if err != nil {
				l.Error("Idempotency reservation failed", "key", key, "error", err)
				render.ServiceError(w, "Idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}
			if !reserved {
				render.ServiceError(w, "Duplicate request is processing", http.StatusConflict)
				return
			}

			rw := &recordWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Request context may be already done, store anyway
			storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(r.Context()), storeTimeout)
			defer storeCancel()

			// Server errors are retryable: let the client repeat the request
			if rw.status >= http.StatusInternalServerError {
				cache.Del(storeCtx, cacheKey)
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:  rw.status,
				Body:    rw.body.Bytes(),
				Headers: map[string]string{"Content-Type": rw.Header().Get("Content-Type")},
			})
			if err == nil {
				err = cache.Set(storeCtx, cacheKey, payload, ttl).Err()
			}
			if err != nil {
				l.Error("Failed to store idempotent response", "key", key, "error", err)
				cache.Del(storeCtx, cacheKey)
			}
		})
	}
}

func replay(w http.ResponseWriter, cached []byte, l errorLogger) {
	if string(cached) == inProgressMarker {
		render.ServiceError(w, "Duplicate request is processing", http.StatusConflict)
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil {
		l.Error("Failed to decode stored response", "error", err)
		render.ServiceError(w, "Duplicate request", http.StatusConflict)
		return
	}

	for header, value := range stored.Headers {
		w.Header().Set(header, value)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
