package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/testutil"
)

func TestOutbox(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	enqueue := func(t *testing.T, repo *OutboxRepo, key string) models.OutboxMessage {
		msg, err := repo.Enqueue(t.Context(), models.OutboxMessage{
			Topic:   "wallet.deposited",
			Key:     key,
			Payload: []byte(`{"amount":"10.00"}`),
		})
		require.NoError(t, err)
		return msg
	}

	t.Run("enqueue", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &OutboxRepo{DB: tx}

			msg := enqueue(t, repo, "k1")

			require.NotZero(t, msg.ID)
			require.Equal(t, "wallet.deposited", msg.Topic)
			require.Equal(t, "k1", msg.Key)
			require.JSONEq(t, `{"amount":"10.00"}`, string(msg.Payload))
			require.Nil(t, msg.PublishedAt)
		})
	})

	t.Run("claim respects lease", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &OutboxRepo{DB: tx}
			first := enqueue(t, repo, "k1")
			second := enqueue(t, repo, "k2")
			third := enqueue(t, repo, "k3")

			claimed, err := repo.Claim(t.Context(), 2, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 2)
			require.Equal(t, first.ID, claimed[0].ID, "oldest messages are claimed first")
			require.Equal(t, second.ID, claimed[1].ID)

			claimed, err = repo.Claim(t.Context(), 10, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 1, "leased messages are not claimed again")
			require.Equal(t, third.ID, claimed[0].ID)

			claimed, err = repo.Claim(t.Context(), 10, time.Minute)
			require.NoError(t, err)
			require.Empty(t, claimed)
		})
	})

	t.Run("expired lease claimed again", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &OutboxRepo{DB: tx}
			msg := enqueue(t, repo, "k1")

			// now() is frozen inside transaction, so negative lease is already expired
			claimed, err := repo.Claim(t.Context(), 10, -time.Second)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			claimed, err = repo.Claim(t.Context(), 10, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			require.Equal(t, msg.ID, claimed[0].ID)
		})
	})

	t.Run("published not claimed", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &OutboxRepo{DB: tx}
			msg := enqueue(t, repo, "k1")

			err := repo.MarkPublished(t.Context(), msg.ID)
			require.NoError(t, err)

			claimed, err := repo.Claim(t.Context(), 10, -time.Second)
			require.NoError(t, err)
			require.Empty(t, claimed)
		})
	})
}
