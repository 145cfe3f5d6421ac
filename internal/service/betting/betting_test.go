package betting

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/contracts"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/repository"
	"github.com/nkiryanov/betplatform/internal/repository/postgres"
	"github.com/nkiryanov/betplatform/internal/service/event"
	"github.com/nkiryanov/betplatform/internal/service/wallet"
	"github.com/nkiryanov/betplatform/internal/testutil"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestQuotas(t *testing.T) {
	tests := []struct {
		amount     string
		quotaValue string
		quotas     int64
		remainder  string
	}{
		{"10", "10", 1, "0"},
		{"25", "10", 2, "5"},
		{"6.25", "2.50", 2, "1.25"},
		{"30", "10", 3, "0"},
		{"9.99", "10", 0, "9.99"},
		{"0.30", "0.10", 3, "0"},
		{"100.05", "33.35", 3, "0"},
		{"100", "0.03", 3333, "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"/"+tt.quotaValue, func(t *testing.T) {
			quotas, remainder := Quotas(dec(tt.amount), dec(tt.quotaValue))

			require.Equal(t, tt.quotas, quotas)
			require.True(t, remainder.Equal(dec(tt.remainder)), "remainder: got %s, want %s", remainder, tt.remainder)
		})
	}
}

type env struct {
	bets    *Service
	events  *event.Service
	wallet  *wallet.Service
	storage repository.Storage
	now     time.Time
}

func TestBetting(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	setup := func(storage repository.Storage) *env {
		e := &env{
			bets:    NewService(storage, nil, nil),
			events:  event.NewService(storage, nil, nil),
			wallet:  wallet.NewService(storage, nil, nil),
			storage: storage,
			now:     testutil.MustParseTime(t, "2026-10-01T12:00:00Z"),
		}
		clock := func() time.Time { return e.now }
		e.bets.Now, e.events.Now, e.wallet.Now = clock, clock, clock
		e.events.BettingWindow = 24 * time.Hour
		return e
	}

	withTx := func(t *testing.T, fn func(e *env)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(setup(postgres.NewStorage(tx)))
		})
	}

	// Bettor account with balance
	bettor := func(t *testing.T, e *env, balance string) uuid.UUID {
		account, err := e.wallet.OpenAccount(t.Context(), uuid.New())
		require.NoError(t, err)
		_, err = e.wallet.Deposit(t.Context(), account.ID, dec(balance))
		require.NoError(t, err)
		return account.ID
	}

	// Event with quota value 10, approved if asked
	newEvent := func(t *testing.T, e *env, approve bool) models.Event {
		ev, err := e.events.Submit(t.Context(), event.SubmitParams{
			Title:       "Final",
			Description: "Final match",
			Organizer:   "organizer@example.com",
			QuotaValue:  dec("10"),
		})
		require.NoError(t, err)

		if approve {
			ev, err = e.events.Evaluate(t.Context(), ev.ID, true)
			require.NoError(t, err)
		}
		return ev
	}

	balance := func(t *testing.T, e *env, id uuid.UUID) decimal.Decimal {
		b, err := e.wallet.Balance(t.Context(), id)
		require.NoError(t, err)
		return b
	}

	t.Run("place bet ok", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			ev := newEvent(t, e, true)

			bet, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("25"))

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, bet.ID)
			require.Equal(t, int64(2), bet.Quotas)
			require.True(t, bet.Stake.Equal(dec("20")))
			require.True(t, bet.Remainder.Equal(dec("5")))
			require.True(t, balance(t, e, bettorID).Equal(dec("80")), "only the stake is debited")

			transactions, err := e.wallet.ListTransactions(t.Context(), bettorID, []string{models.TransactionTypeBet})
			require.NoError(t, err)
			require.Len(t, transactions, 1)
			require.Equal(t, bet.ID, *transactions[0].Reference)

			bets, err := e.bets.ListBets(t.Context(), bettorID)
			require.NoError(t, err)
			require.Len(t, bets, 1)
			require.Equal(t, bet.ID, bets[0].ID)

			messages, err := e.storage.Outbox().Claim(t.Context(), 10, time.Minute)
			require.NoError(t, err)
			topics := make([]string, 0, len(messages))
			for _, m := range messages {
				topics = append(topics, m.Topic)
			}
			require.Equal(t, []string{
				contracts.TopicDeposited,
				contracts.TopicEventStatusChanged,
				contracts.TopicBetPlaced,
			}, topics)
		})
	})

	t.Run("invalid input", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			ev := newEvent(t, e, true)

			for _, amount := range []string{"0", "-10", "10.001"} {
				_, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec(amount))
				require.ErrorIs(t, err, apperrors.ErrInvalidArgument, "amount %s", amount)
			}

			_, err := e.bets.PlaceBet(t.Context(), uuid.Nil, ev.ID, dec("10"))
			require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
			_, err = e.bets.PlaceBet(t.Context(), bettorID, uuid.Nil, dec("10"))
			require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		})
	})

	t.Run("unknown event", func(t *testing.T) {
		withTx(t, func(e *env) {
			_, err := e.bets.PlaceBet(t.Context(), bettor(t, e, "100"), uuid.New(), dec("10"))

			require.ErrorIs(t, err, apperrors.ErrEventNotFound)
		})
	})

	t.Run("unknown bettor", func(t *testing.T) {
		withTx(t, func(e *env) {
			ev := newEvent(t, e, true)

			_, err := e.bets.PlaceBet(t.Context(), uuid.New(), ev.ID, dec("10"))

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("event not approved", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			pending := newEvent(t, e, false)
			denied := newEvent(t, e, false)
			_, err := e.events.Evaluate(t.Context(), denied.ID, false)
			require.NoError(t, err)

			for _, id := range []uuid.UUID{pending.ID, denied.ID} {
				_, err := e.bets.PlaceBet(t.Context(), bettorID, id, dec("10"))
				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			}
			require.True(t, balance(t, e, bettorID).Equal(dec("100")))
		})
	})

	t.Run("window closed", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			ev := newEvent(t, e, true)

			e.now = ev.BettingEnd.Add(-time.Microsecond)
			_, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("10"))
			require.NoError(t, err, "last moment before end is inside window")

			e.now = *ev.BettingEnd
			_, err = e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("10"))
			require.ErrorIs(t, err, apperrors.ErrWindowClosed, "window end is exclusive")

			e.now = ev.BettingStart.Add(-time.Second)
			_, err = e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("10"))
			require.ErrorIs(t, err, apperrors.ErrWindowClosed, "window has not started yet")

			require.True(t, balance(t, e, bettorID).Equal(dec("90")))
		})
	})

	t.Run("below minimum", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			ev := newEvent(t, e, true)

			_, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("9.99"))

			require.ErrorIs(t, err, apperrors.ErrBelowMinimum)
			var minErr *apperrors.BelowMinimumError
			require.ErrorAs(t, err, &minErr)
			require.True(t, minErr.Minimum.Equal(dec("10")))
			require.True(t, balance(t, e, bettorID).Equal(dec("100")))
		})
	})

	t.Run("insufficient funds", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "15")
			ev := newEvent(t, e, true)

			_, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("25"))

			var fundsErr *apperrors.InsufficientFundsError
			require.ErrorAs(t, err, &fundsErr)
			require.True(t, fundsErr.Shortfall().Equal(dec("5")), "stake of 20 is required, not 25")

			bets, err := e.bets.ListBets(t.Context(), bettorID)
			require.NoError(t, err)
			require.Empty(t, bets, "failed bet must not be stored")
		})
	})

	t.Run("submit approve bet finish", func(t *testing.T) {
		withTx(t, func(e *env) {
			bettorID := bettor(t, e, "100")
			ev := newEvent(t, e, true)

			e.now = e.now.Add(time.Hour)
			bet, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("25"))
			require.NoError(t, err)
			require.Equal(t, int64(2), bet.Quotas)

			_, err = e.events.Finish(t.Context(), ev.ID)
			require.NoError(t, err)

			_, err = e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("25"))
			require.ErrorIs(t, err, apperrors.ErrInvalidState)
		})
	})

	t.Run("concurrent bets share balance", func(t *testing.T) {
		e := setup(postgres.NewStorage(pg.Pool))
		e.now = time.Now()
		bettorID := bettor(t, e, "50")
		ev := newEvent(t, e, true)

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			placed int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.bets.PlaceBet(t.Context(), bettorID, ev.ID, dec("10")); err == nil {
					mu.Lock()
					placed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 5, placed, "50 buys exactly five bets of 10")
		require.True(t, balance(t, e, bettorID).IsZero())
	})
}
