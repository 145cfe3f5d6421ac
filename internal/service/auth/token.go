package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/betplatform/internal/models"
)

const (
	defaultSigningMethod = "HS256"
	defaultTokenTTL      = 15 * time.Minute
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID  uuid.UUID `json:"uid"`
	Email   string    `json:"email,omitempty"`
	IsAdmin bool      `json:"adm,omitempty"`
}

type Config struct {
	// Secret key to verify access token signature
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Lifetime of issued tokens
	// If not set than default is used
	TTL time.Duration
}

// Verifies access tokens issued by the identity provider
type TokenVerifier struct {
	key []byte
	alg jwt.SigningMethod
	ttl time.Duration
}

func NewVerifier(cfg Config) (*TokenVerifier, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported, HMAC expected", cfg.Alg)
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTokenTTL
	}

	return &TokenVerifier{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttl: cfg.TTL,
	}, nil
}

// Parse and validate access token
func (v *TokenVerifier) Verify(access string) (models.User, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return v.key, nil
		},
		jwt.WithValidMethods([]string{v.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.User{}, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	if claims.UserID == uuid.Nil {
		return models.User{}, errors.New("token has no user id")
	}

	return models.User{
		ID:      claims.UserID,
		Email:   claims.Email,
		IsAdmin: claims.IsAdmin,
	}, nil
}

// Issue signs access token for the user. Used by tests and local tooling, users get tokens from the identity provider
func (v *TokenVerifier) Issue(user models.User) (string, error) {
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(v.alg, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})

	access, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return access, nil
}
