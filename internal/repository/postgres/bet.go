package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/models"
)

type BetRepo struct {
	DB DBTX
}

const createBet = `-- name: CreateBet
INSERT INTO bets (id, placed_at, event_id, bettor_id, quotas, stake)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, placed_at, event_id, bettor_id, quotas, stake
`

func (r *BetRepo) CreateBet(ctx context.Context, b models.Bet) (models.Bet, error) {
	rows, _ := r.DB.Query(ctx, createBet, b.ID, b.PlacedAt, b.EventID, b.BettorID, b.Quotas, b.Stake)
	created, err := pgx.CollectOneRow(rows, rowToBet)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "bets_event_id_fkey":
				return created, apperrors.ErrEventNotFound
			default:
				return created, apperrors.ErrAccountNotFound
			}
		}

		return created, apperrors.StoreError(err)
	}

	created.Remainder = b.Remainder
	return created, nil
}

const listBets = `-- name: ListBets
SELECT id, placed_at, event_id, bettor_id, quotas, stake FROM bets
WHERE bettor_id = $1
ORDER BY placed_at DESC, id
`

func (r *BetRepo) ListBets(ctx context.Context, bettorID uuid.UUID) ([]models.Bet, error) {
	rows, _ := r.DB.Query(ctx, listBets, bettorID)
	bets, err := pgx.CollectRows(rows, rowToBet)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", apperrors.StoreError(err))
	}

	return bets, nil
}

func rowToBet(row pgx.CollectableRow) (models.Bet, error) {
	var b models.Bet
	err := row.Scan(&b.ID, &b.PlacedAt, &b.EventID, &b.BettorID, &b.Quotas, &b.Stake)
	return b, err
}
