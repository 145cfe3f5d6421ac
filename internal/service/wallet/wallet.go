package wallet

import (
	"context"
	"fmt"
	"slices"
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

var transactionTypes = []string{
	models.TransactionTypeDeposit,
	models.TransactionTypeWithdrawal,
	models.TransactionTypeBet,
}

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

// OpenAccount creates account with zero balance
func (s *Service) OpenAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	if err := validate.ID("account id", id); err != nil {
		return models.Account{}, err
	}

	var account models.Account

	// Own transaction: failed insert must not abort the caller's one
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		account, err = storage.Account().CreateAccount(ctx, id)
		return err
	})
	if err != nil {
		return account, fmt.Errorf("open account: %w", err)
	}

	s.l.Info("account opened", "account_id", id)
	return account, nil
}

// Deposit credits the account and returns it with the new balance
func (s *Service) Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error) {
	var account models.Account

	if err := validate.ID("account id", id); err != nil {
		return account, err
	}
	if err := validate.Amount(amount); err != nil {
		return account, err
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		now := s.Now()

		account, err = storage.Account().Credit(ctx, id, amount)
		if err != nil {
			return err
		}

		_, err = storage.Account().CreateTransaction(ctx, models.Transaction{
			ID:          uuid.New(),
			ProcessedAt: now,
			AccountID:   id,
			Type:        models.TransactionTypeDeposit,
			Amount:      amount,
			Tax:         decimal.Zero,
		})
		if err != nil {
			return err
		}

		return contracts.Enqueue(ctx, storage.Outbox(), contracts.TopicDeposited, id, contracts.Deposited{
			AccountID: id,
			Amount:    amount,
			Balance:   account.Balance,
			At:        now,
		})
	})
	if err != nil {
		return account, fmt.Errorf("deposit: %w", err)
	}

	s.metrics.Deposit()
	s.l.Info("deposit applied", "account_id", id, "amount", amount.StringFixed(2))
	return account, nil
}

// Withdraw debits amount plus tax only if the balance covers both
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Withdrawal, error) {
	var withdrawal models.Withdrawal

	if err := validate.ID("account id", id); err != nil {
		return withdrawal, err
	}
	if err := validate.Amount(amount); err != nil {
		return withdrawal, err
	}

	tax := Tax(amount)
	total := amount.Add(tax)

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		now := s.Now()

		account, err := storage.Account().Debit(ctx, id, total)
		if err != nil {
			return err
		}

		_, err = storage.Account().CreateTransaction(ctx, models.Transaction{
			ID:          uuid.New(),
			ProcessedAt: now,
			AccountID:   id,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Tax:         tax,
		})
		if err != nil {
			return err
		}

		withdrawal = models.Withdrawal{
			Amount:       amount,
			Tax:          tax,
			TotalDebited: total,
			Balance:      account.Balance,
		}

		return contracts.Enqueue(ctx, storage.Outbox(), contracts.TopicWithdrawn, id, contracts.Withdrawn{
			AccountID:    id,
			Amount:       amount,
			Tax:          tax,
			TotalDebited: total,
			Balance:      account.Balance,
			At:           now,
		})
	})
	if err != nil {
		return models.Withdrawal{}, fmt.Errorf("withdraw: %w", err)
	}

	s.metrics.Withdrawal(tax.InexactFloat64())
	s.l.Info("withdrawal applied", "account_id", id, "amount", amount.StringFixed(2), "tax", tax.StringFixed(2))
	return withdrawal, nil
}

// Balance reads the latest committed balance
func (s *Service) Balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	if err := validate.ID("account id", id); err != nil {
		return decimal.Zero, err
	}

	account, err := s.storage.Account().GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}

	return account.Balance, nil
}

// ListTransactions returns account statement, newest first. Empty types means all
func (s *Service) ListTransactions(ctx context.Context, id uuid.UUID, types []string) ([]models.Transaction, error) {
	if err := validate.ID("account id", id); err != nil {
		return nil, err
	}
	for _, t := range types {
		if !slices.Contains(transactionTypes, t) {
			return nil, apperrors.InvalidArgument("unknown transaction type %q", t)
		}
	}

	if _, err := s.storage.Account().GetAccount(ctx, id); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	transactions, err := s.storage.Account().ListTransactions(ctx, id, types)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return transactions, nil
}
