package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/handlers/userctx"
	"github.com/nkiryanov/betplatform/internal/models"
)

const bearerPrefix = "Bearer "

type tokenVerifier interface {
	// Return user the token was issued for or error if token is not valid
	Verify(access string) (models.User, error)
}

type Auth struct {
	verifier tokenVerifier
}

func NewAuth(verifier tokenVerifier) *Auth {
	return &Auth{verifier: verifier}
}

// Auth puts user from bearer token to request context or responds 401
func (a *Auth) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := a.verifier.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), user)))
	})
}

// Admin authenticates request and lets only administrators through
func (a *Auth) Admin(next http.Handler) http.Handler {
	return a.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok || !user.IsAdmin {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
