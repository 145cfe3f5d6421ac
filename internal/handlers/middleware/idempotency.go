package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/betplatform/internal/cache"
	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/handlers/userctx"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotency-Replayed"

	maxIdempotencyKeyLength = 255
)

type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (cache.StoredResponse, error)
	Complete(ctx context.Context, key string, resp cache.StoredResponse) error
	Release(ctx context.Context, key string) error
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Idempotency replays stored response for requests retried with the same Idempotency-Key
// Requests without the header pass through. Has to be applied after Auth: keys are scoped by user
func Idempotency(store IdempotencyStore, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLength {
				render.ServiceError(w, "Idempotency key is too long", http.StatusBadRequest)
				return
			}

			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			key := strings.Join([]string{user.ID.String(), r.Method, r.URL.Path, header}, ":")
			ctx := r.Context()

			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				l.Error("Failed to reserve idempotency key", "error", err)
				render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			if !reserved {
				stored, err := store.Get(ctx, key)
				switch {
				case err == nil:
					replay(w, stored)
				case errors.Is(err, cache.ErrInProgress), errors.Is(err, cache.ErrKeyNotFound):
					render.ServiceError(w, "Request with the same idempotency key is in progress", http.StatusConflict)
				default:
					l.Error("Failed to read idempotency key", "error", err)
					render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				}
				return
			}

			rw := newRecorder(w, true)
			next.ServeHTTP(rw, r)

			// Store the result even if client has gone
			ctx = context.WithoutCancel(ctx)

			if rw.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key); err != nil {
					l.Error("Failed to release idempotency key", "error", err)
				}
				return
			}

			err = store.Complete(ctx, key, cache.StoredResponse{
				Status:      rw.status,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
			})
			if err != nil {
				l.Error("Failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, stored cache.StoredResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
