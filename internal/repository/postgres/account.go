package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, balance)
VALUES ($1, 0)
RETURNING id, created_at, updated_at, balance
`

func (r *AccountRepo) CreateAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, createAccount, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}

		return account, apperrors.StoreError(err)
	}

	return account, nil
}

const getAccount = `-- name: GetAccount
SELECT id, created_at, updated_at, balance FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccount, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, apperrors.StoreError(err)
	}
}

const creditAccount = `-- name: CreditAccount
UPDATE accounts
SET balance = balance + $2, updated_at = now()
WHERE id = $1
RETURNING id, created_at, updated_at, balance
`

func (r *AccountRepo) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, creditAccount, id, amount)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, apperrors.StoreError(err)
	}
}

// Check and decrement are one statement: concurrent debits can't both see the same balance
const debitAccount = `-- name: DebitAccount
UPDATE accounts
SET balance = balance - $2, updated_at = now()
WHERE id = $1 AND balance >= $2
RETURNING id, created_at, updated_at, balance
`

func (r *AccountRepo) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, debitAccount, id, amount)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing updated: either there is no such account or the balance is too low
		current, err := r.GetAccount(ctx, id)
		if err != nil {
			return account, err
		}
		return current, &apperrors.InsufficientFundsError{Required: amount, Available: current.Balance}
	default:
		return account, apperrors.StoreError(err)
	}
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, processed_at, account_id, type, amount, tax, reference)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, processed_at, account_id, type, amount, tax, reference
`

func (r *AccountRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, createTransaction, t.ID, t.ProcessedAt, t.AccountID, t.Type, t.Amount, t.Tax, t.Reference)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}

		return created, apperrors.StoreError(err)
	}

	return created, nil
}

const listTransactions = `-- name: ListTransactions
SELECT id, processed_at, account_id, type, amount, tax, reference FROM transactions
WHERE account_id = $1 AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
ORDER BY processed_at DESC, id
`

func (r *AccountRepo) ListTransactions(ctx context.Context, accountID uuid.UUID, types []string) ([]models.Transaction, error) {
	if types == nil {
		types = []string{}
	}

	rows, _ := r.DB.Query(ctx, listTransactions, accountID, types)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", apperrors.StoreError(err))
	}

	return transactions, nil
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Balance)
	return a, err
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.ProcessedAt, &t.AccountID, &t.Type, &t.Amount, &t.Tax, &t.Reference)
	return t, err
}
