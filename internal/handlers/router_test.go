package handlers

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/service/auth"
)

// Embedded interfaces panic on unexpected calls
type stubWallet struct {
	WalletService
	deposit func(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error)
}

func (s stubWallet) Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error) {
	return s.deposit(ctx, id, amount)
}

type stubEvents struct {
	EventService
	list     func(ctx context.Context, filter string) (iter.Seq2[models.Event, error], error)
	evaluate func(ctx context.Context, id uuid.UUID, approve bool) (models.Event, error)
}

func (s stubEvents) List(ctx context.Context, filter string) (iter.Seq2[models.Event, error], error) {
	return s.list(ctx, filter)
}

func (s stubEvents) Evaluate(ctx context.Context, id uuid.UUID, approve bool) (models.Event, error) {
	return s.evaluate(ctx, id, approve)
}

type client struct {
	t   *testing.T
	url string
}

// Do request with bearer token if set, returns status and body
func (c client) do(method string, path string, token string, body string) (int, string) {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.url+path, reader)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode, string(respBody)
}

func issueTokens(t *testing.T) (*auth.TokenVerifier, string, string) {
	verifier, err := auth.NewVerifier(auth.Config{SecretKey: "test-secret"})
	require.NoError(t, err)

	admin, err := verifier.Issue(models.User{ID: uuid.New(), Email: "admin@example.com", IsAdmin: true})
	require.NoError(t, err)
	bettor, err := verifier.Issue(models.User{ID: uuid.New(), Email: "bettor@example.com"})
	require.NoError(t, err)

	return verifier, admin, bettor
}

func TestRouter(t *testing.T) {
	verifier, adminToken, bettorToken := issueTokens(t)

	approvedAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	endsAt := approvedAt.Add(24 * time.Hour)
	eventID := uuid.New()

	var gotFilter string
	var depositCalls int

	deps := Deps{
		Wallet: stubWallet{
			deposit: func(_ context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error) {
				depositCalls++
				return models.Account{ID: id, Balance: amount}, nil
			},
		},
		Events: stubEvents{
			list: func(_ context.Context, filter string) (iter.Seq2[models.Event, error], error) {
				gotFilter = filter
				return func(yield func(models.Event, error) bool) {
					yield(models.Event{
						ID:           eventID,
						CreatedAt:    approvedAt,
						Title:        "Final",
						Description:  "Cup final",
						Organizer:    "org@example.com",
						QuotaValue:   decimal.RequireFromString("10"),
						Status:       models.EventApproved,
						BettingStart: &approvedAt,
						BettingEnd:   &endsAt,
					}, nil)
				}, nil
			},
			evaluate: func(_ context.Context, id uuid.UUID, approve bool) (models.Event, error) {
				return models.Event{ID: id, Status: models.EventApproved}, nil
			},
		},
		Tokens: verifier,
	}

	srv := httptest.NewServer(NewRouter(deps, logger.NewNoOpLogger()))
	defer srv.Close()
	c := client{t: t, url: srv.URL}

	t.Run("unauthorized", func(t *testing.T) {
		code, _ := c.do(http.MethodGet, "/api/wallet/balance", "", "")
		require.Equal(t, http.StatusUnauthorized, code)

		code, _ = c.do(http.MethodGet, "/api/wallet/balance", "not-a-jwt", "")
		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("admin only", func(t *testing.T) {
		path := "/api/events/" + eventID.String() + "/evaluate"

		code, _ := c.do(http.MethodPost, path, bettorToken, `{"approve": true}`)
		require.Equal(t, http.StatusForbidden, code)

		code, body := c.do(http.MethodPost, path, adminToken, `{"approve": true}`)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"id": "`+eventID.String()+`", "status": "approved", "message": "Event approved"}`, body)
	})

	t.Run("evaluate requires decision", func(t *testing.T) {
		code, body := c.do(http.MethodPost, "/api/events/"+eventID.String()+"/evaluate", adminToken, `{}`)
		require.Equal(t, http.StatusBadRequest, code)
		require.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {"approve": "This field is required"}
		}`, body)
	})

	t.Run("invalid event id", func(t *testing.T) {
		code, _ := c.do(http.MethodPost, "/api/events/42/finish", adminToken, "")
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("deposit validated before service", func(t *testing.T) {
		depositCalls = 0

		code, _ := c.do(http.MethodPost, "/api/wallet/deposit", bettorToken, `{"amount": "0.001"}`)
		require.Equal(t, http.StatusBadRequest, code)
		require.Zero(t, depositCalls)

		code, body := c.do(http.MethodPost, "/api/wallet/deposit", bettorToken, `{"amount": "12.5"}`)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"balance": "12.50"}`, body)
		require.Equal(t, 1, depositCalls)
	})

	t.Run("list events approved by default", func(t *testing.T) {
		code, body := c.do(http.MethodGet, "/api/events", bettorToken, "")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "approved", gotFilter)
		require.JSONEq(t, `[{
			"id": "`+eventID.String()+`",
			"title": "Final",
			"description": "Cup final",
			"organizer": "org@example.com",
			"quota_value": "10.00",
			"status": "approved",
			"betting_start": "2026-10-01T12:00:00Z",
			"betting_end": "2026-10-02T12:00:00Z",
			"created_at": "2026-10-01T12:00:00Z"
		}]`, body)

		_, _ = c.do(http.MethodGet, "/api/events?status=past", bettorToken, "")
		require.Equal(t, "past", gotFilter)
	})

	t.Run("unknown route", func(t *testing.T) {
		code, _ := c.do(http.MethodDelete, "/api/wallet", bettorToken, "")
		require.Equal(t, http.StatusMethodNotAllowed, code)
	})
}
