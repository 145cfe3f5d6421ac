package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/contracts"
	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/metrics"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/repository"
	"github.com/nkiryanov/betplatform/internal/service/validate"
)

type Service struct {
	storage repository.Storage
	metrics *metrics.Metrics
	l       logger.Logger

	// Clock, time.Now if not set
	Now func() time.Time
}

func NewService(storage repository.Storage, m *metrics.Metrics, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		metrics: m,
		l:       l,
		Now:     time.Now,
	}
}

// Quotas returns how many whole quotas the amount buys and what is left
func Quotas(amount decimal.Decimal, quotaValue decimal.Decimal) (int64, decimal.Decimal) {
	// Both are positive, so truncated quotient is the floor
	quotas, remainder := amount.QuoRem(quotaValue, 0)
	return quotas.IntPart(), remainder
}

// PlaceBet buys whole quotas of approved event with open betting window
// Stake is debited from the bettor, remainder of the amount stays on the balance
func (s *Service) PlaceBet(ctx context.Context, bettorID uuid.UUID, eventID uuid.UUID, amount decimal.Decimal) (models.Bet, error) {
	var bet models.Bet

	if err := validate.ID("bettor id", bettorID); err != nil {
		return bet, err
	}
	if err := validate.ID("event id", eventID); err != nil {
		return bet, err
	}
	if err := validate.Amount(amount); err != nil {
		return bet, err
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		now := s.Now()

		// Shared lock keeps the event approved until the bet is committed
		event, err := storage.Event().GetEvent(ctx, eventID, true)
		if err != nil {
			return err
		}

		switch {
		case event.Status != models.EventApproved:
			return fmt.Errorf("%w: event is %s", apperrors.ErrInvalidState, event.Status)
		case !event.AcceptsBetsAt(now):
			return apperrors.ErrWindowClosed
		}

		quotas, remainder := Quotas(amount, event.QuotaValue)
		if quotas < 1 {
			return &apperrors.BelowMinimumError{Minimum: event.QuotaValue}
		}
		stake := event.QuotaValue.Mul(decimal.NewFromInt(quotas))

		if _, err := storage.Account().Debit(ctx, bettorID, stake); err != nil {
			return err
		}

		bet, err = storage.Bet().CreateBet(ctx, models.Bet{
			ID:        uuid.New(),
			PlacedAt:  now,
			EventID:   eventID,
			BettorID:  bettorID,
			Quotas:    quotas,
			Stake:     stake,
			Remainder: remainder,
		})
		if err != nil {
			return err
		}

		_, err = storage.Account().CreateTransaction(ctx, models.Transaction{
			ID:          uuid.New(),
			ProcessedAt: now,
			AccountID:   bettorID,
			Type:        models.TransactionTypeBet,
			Amount:      stake,
			Tax:         decimal.Zero,
			Reference:   &bet.ID,
		})
		if err != nil {
			return err
		}

		return contracts.Enqueue(ctx, storage.Outbox(), contracts.TopicBetPlaced, eventID, contracts.BetPlaced{
			BetID:    bet.ID,
			EventID:  eventID,
			BettorID: bettorID,
			Quotas:   quotas,
			Stake:    stake,
			At:       now,
		})
	})
	if err != nil {
		s.metrics.BetRejected(rejectReason(err))
		return models.Bet{}, fmt.Errorf("place bet: %w", err)
	}

	s.metrics.BetPlaced()
	s.l.Info("bet placed", "bet_id", bet.ID, "event_id", eventID, "quotas", bet.Quotas, "stake", bet.Stake.StringFixed(2))
	return bet, nil
}

// ListBets returns bettor bets, newest first
func (s *Service) ListBets(ctx context.Context, bettorID uuid.UUID) ([]models.Bet, error) {
	if err := validate.ID("bettor id", bettorID); err != nil {
		return nil, err
	}

	bets, err := s.storage.Bet().ListBets(ctx, bettorID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}

	return bets, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, apperrors.ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		return "insufficient_funds"
	default:
		return "error"
	}
}
