package userctx

import (
	"context"

	"github.com/nkiryanov/betplatform/internal/models"
)

type userKey struct{}

// New returns context carrying the authenticated user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the authenticated user, false for anonymous requests
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}
