package repository

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/models"
)

// Storage groups repositories sharing one connection or transaction
type Storage interface {
	Account() AccountRepo
	Event() EventRepo
	Bet() BetRepo
	Outbox() OutboxRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

// Ledger store
type AccountRepo interface {
	// Has to return apperrors.ErrAccountAlreadyExists if account exists
	CreateAccount(ctx context.Context, id uuid.UUID) (models.Account, error)

	// Has to return apperrors.ErrAccountNotFound if account not exists
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)

	// Increment balance in a single statement
	Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error)

	// Decrement balance only if it is enough in a single statement
	// Has to return *apperrors.InsufficientFundsError if the balance is too low
	// and apperrors.ErrAccountNotFound if account not exists
	Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error)

	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// List account transactions, newest first. Empty types means all of them
	ListTransactions(ctx context.Context, accountID uuid.UUID, types []string) ([]models.Transaction, error)
}

type TransitionParams struct {
	ID   uuid.UUID
	From models.EventStatus
	To   models.EventStatus
	At   time.Time

	// Overwrite betting window if set
	BettingStart *time.Time
	BettingEnd   *time.Time

	// Move betting end to At unless it already passed
	CloseWindow bool
}

type ListEventsOpts struct {
	Statuses []models.EventStatus

	// Filter by betting end: end > EndsAfter, end <= EndedBy
	EndsAfter *time.Time
	EndedBy   *time.Time

	// Case insensitive match on title or description
	Keyword string

	// Zero means no limit
	Limit int
}

// Event record store
type EventRepo interface {
	CreateEvent(ctx context.Context, e models.Event) (models.Event, error)

	// Has to return apperrors.ErrEventNotFound if event not exists
	// forShare locks the row against concurrent status transitions till the end of transaction
	GetEvent(ctx context.Context, id uuid.UUID, forShare bool) (models.Event, error)

	// Change status if the current one equals to params.From, in a single statement
	// Has to return apperrors.ErrEventNotFound or apperrors.ErrInvalidState if nothing changed
	TransitionEvent(ctx context.Context, params TransitionParams) (models.Event, error)

	// Overwrite betting end of approved event
	// Has to return apperrors.ErrEventNotFound or apperrors.ErrInvalidState if nothing changed
	SetBettingEnd(ctx context.Context, id uuid.UUID, end time.Time, at time.Time) (models.Event, error)

	// Lazy sequence of events ordered by creation. Every range over it queries the store again
	ListEvents(ctx context.Context, opts ListEventsOpts) iter.Seq2[models.Event, error]
}

type BetRepo interface {
	CreateBet(ctx context.Context, b models.Bet) (models.Bet, error)

	// List bettor bets, newest first
	ListBets(ctx context.Context, bettorID uuid.UUID) ([]models.Bet, error)
}

type OutboxRepo interface {
	Enqueue(ctx context.Context, msg models.OutboxMessage) (models.OutboxMessage, error)

	// Claim up to limit unpublished messages for lease duration
	// Claimed messages are not returned by other calls until lease expires
	Claim(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error)

	MarkPublished(ctx context.Context, id int64) error
}
