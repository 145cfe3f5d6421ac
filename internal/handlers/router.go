package handlers

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/handlers/middleware"
	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/metrics"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/service/event"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Wallet  WalletService
	Events  EventService
	Betting BettingService
	Tokens  TokenVerifier

	// Optional: requests with Idempotency-Key are not deduplicated if not set
	Idempotency middleware.IdempotencyStore

	// Optional
	Metrics *metrics.Metrics
}

func NewRouter(deps Deps, logger logger.Logger) http.Handler {
	auth := middleware.NewAuth(deps.Tokens)

	// Money moving requests: authenticated and deduplicated
	withIdempotency := func(h http.Handler) http.Handler { return h }
	if deps.Idempotency != nil {
		withIdempotency = middleware.Idempotency(deps.Idempotency, logger)
	}
	money := func(h http.Handler) http.Handler {
		return auth.Auth(withIdempotency(h))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/wallet", money(handleOpenAccount(deps.Wallet, logger)))
	mux.Handle("POST /api/wallet/deposit", money(handleDeposit(deps.Wallet, logger)))
	mux.Handle("POST /api/wallet/withdraw", money(handleWithdraw(deps.Wallet, logger)))
	mux.Handle("GET /api/wallet/balance", auth.Auth(handleBalance(deps.Wallet, logger)))
	mux.Handle("GET /api/wallet/transactions", auth.Auth(handleListTransactions(deps.Wallet, logger)))

	mux.Handle("POST /api/events", auth.Auth(handleSubmitEvent(deps.Events, logger)))
	mux.Handle("GET /api/events", auth.Auth(handleListEvents(deps.Events, logger)))
	mux.Handle("GET /api/events/search", auth.Auth(handleSearchEvents(deps.Events, logger)))
	mux.Handle("POST /api/events/{id}/evaluate", auth.Admin(handleEvaluateEvent(deps.Events, logger)))
	mux.Handle("POST /api/events/{id}/finish", auth.Admin(handleFinishEvent(deps.Events, logger)))
	mux.Handle("PUT /api/events/{id}/betting-end", auth.Admin(handleSetBettingEnd(deps.Events, logger)))

	mux.Handle("POST /api/events/{id}/bets", money(handlePlaceBet(deps.Betting, logger)))
	mux.Handle("GET /api/bets", auth.Auth(handleListBets(deps.Betting, logger)))

	// Metrics reads pattern matched by mux, so none of the outer middlewares may replace the request
	handler := chain(mux,
		middleware.Metrics(deps.Metrics),
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type WalletService interface {
	// Has to return apperrors.ErrAccountAlreadyExists if account is already opened
	OpenAccount(ctx context.Context, id uuid.UUID) (models.Account, error)

	Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error)

	// Has to return *apperrors.InsufficientFundsError if balance does not cover amount with tax
	Withdraw(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Withdrawal, error)

	Balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, id uuid.UUID, types []string) ([]models.Transaction, error)
}

type EventService interface {
	Submit(ctx context.Context, p event.SubmitParams) (models.Event, error)
	Evaluate(ctx context.Context, id uuid.UUID, approve bool) (models.Event, error)
	Finish(ctx context.Context, id uuid.UUID) (models.Event, error)
	SetBettingEnd(ctx context.Context, id uuid.UUID, end time.Time) (models.Event, error)
	List(ctx context.Context, filter string) (iter.Seq2[models.Event, error], error)
	Search(ctx context.Context, keyword string) (iter.Seq2[models.Event, error], error)
}

type BettingService interface {
	// Has to return *apperrors.BelowMinimumError if amount does not buy a quota
	PlaceBet(ctx context.Context, bettorID uuid.UUID, eventID uuid.UUID, amount decimal.Decimal) (models.Bet, error)

	ListBets(ctx context.Context, bettorID uuid.UUID) ([]models.Bet, error)
}

type TokenVerifier interface {
	Verify(access string) (models.User, error)
}
