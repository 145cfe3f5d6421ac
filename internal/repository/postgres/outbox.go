package postgres

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/models"
)

type OutboxRepo struct {
	DB DBTX
}

const enqueueMessage = `-- name: EnqueueMessage
INSERT INTO outbox (topic, key, payload)
VALUES ($1, $2, $3)
RETURNING id, created_at, topic, key, payload, published_at
`

func (r *OutboxRepo) Enqueue(ctx context.Context, msg models.OutboxMessage) (models.OutboxMessage, error) {
	rows, _ := r.DB.Query(ctx, enqueueMessage, msg.Topic, msg.Key, msg.Payload)
	created, err := pgx.CollectOneRow(rows, rowToMessage)
	if err != nil {
		return created, apperrors.StoreError(err)
	}

	return created, nil
}

// SKIP LOCKED lets several dispatchers claim disjoint batches
const claimMessages = `-- name: ClaimMessages
UPDATE outbox
SET claimed_until = now() + $2::double precision * interval '1 second'
WHERE id IN (
	SELECT id FROM outbox
	WHERE published_at IS NULL AND (claimed_until IS NULL OR claimed_until < now())
	ORDER BY id
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, created_at, topic, key, payload, published_at
`

func (r *OutboxRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error) {
	rows, _ := r.DB.Query(ctx, claimMessages, limit, lease.Seconds())
	messages, err := pgx.CollectRows(rows, rowToMessage)
	if err != nil {
		return nil, apperrors.StoreError(err)
	}

	// UPDATE ... RETURNING does not keep subquery order
	slices.SortFunc(messages, func(a, b models.OutboxMessage) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return messages, nil
}

const markPublished = `-- name: MarkPublished
UPDATE outbox
SET published_at = now(), claimed_until = NULL
WHERE id = $1
`

func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, markPublished, id)
	if err != nil {
		return apperrors.StoreError(err)
	}

	return nil
}

func rowToMessage(row pgx.CollectableRow) (models.OutboxMessage, error) {
	var m models.OutboxMessage
	err := row.Scan(&m.ID, &m.CreatedAt, &m.Topic, &m.Key, &m.Payload, &m.PublishedAt)
	return m, err
}
