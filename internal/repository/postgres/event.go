package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/repository"
)

type EventRepo struct {
	DB DBTX
}

const eventColumns = `id, created_at, updated_at, title, description, organizer, quota_value, event_date, status, betting_start, betting_end`

const createEvent = `-- name: CreateEvent
INSERT INTO events (id, created_at, updated_at, title, description, organizer, quota_value, event_date, status, betting_start, betting_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + eventColumns

func (r *EventRepo) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	rows, _ := r.DB.Query(ctx, createEvent,
		e.ID, e.CreatedAt, e.UpdatedAt, e.Title, e.Description, e.Organizer, e.QuotaValue, e.EventDate,
		int16(e.Status), e.BettingStart, e.BettingEnd,
	)
	created, err := pgx.CollectOneRow(rows, rowToEvent)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return created, apperrors.InvalidArgument("event violates %s", pgErr.ConstraintName)
		}

		return created, apperrors.StoreError(err)
	}

	return created, nil
}

const getEvent = `-- name: GetEvent
SELECT ` + eventColumns + ` FROM events
WHERE id = $1
`

func (r *EventRepo) GetEvent(ctx context.Context, id uuid.UUID, forShare bool) (models.Event, error) {
	query := getEvent
	if forShare {
		query += "FOR SHARE"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	event, err := pgx.CollectOneRow(rows, rowToEvent)

	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, pgx.ErrNoRows):
		return event, apperrors.ErrEventNotFound
	default:
		return event, apperrors.StoreError(err)
	}
}

// Status guard in WHERE makes transition atomic: of two racing transitions only one matches the row
const transitionEvent = `-- name: TransitionEvent
UPDATE events
SET
	status = $3,
	updated_at = $4,
	betting_start = COALESCE($5, betting_start),
	betting_end = CASE
		WHEN $7::boolean THEN LEAST(COALESCE($6, betting_end), GREATEST(COALESCE($5, betting_start), $4))
		ELSE COALESCE($6, betting_end)
	END
WHERE id = $1 AND status = $2
RETURNING ` + eventColumns

func (r *EventRepo) TransitionEvent(ctx context.Context, p repository.TransitionParams) (models.Event, error) {
	rows, _ := r.DB.Query(ctx, transitionEvent,
		p.ID, int16(p.From), int16(p.To), p.At, p.BettingStart, p.BettingEnd, p.CloseWindow,
	)
	event, err := pgx.CollectOneRow(rows, rowToEvent)

	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, pgx.ErrNoRows):
		current, err := r.explainNotUpdated(ctx, p.ID, p.From)
		if err != nil {
			return current, err
		}
		// Status was changed and changed back in between
		return current, fmt.Errorf("%w: event changed concurrently", apperrors.ErrInvalidState)
	default:
		return event, apperrors.StoreError(err)
	}
}

const setBettingEnd = `-- name: SetBettingEnd
UPDATE events
SET betting_end = $3, updated_at = $4
WHERE id = $1 AND status = $2 AND betting_start <= $3
RETURNING ` + eventColumns

func (r *EventRepo) SetBettingEnd(ctx context.Context, id uuid.UUID, end time.Time, at time.Time) (models.Event, error) {
	rows, _ := r.DB.Query(ctx, setBettingEnd, id, int16(models.EventApproved), end, at)
	event, err := pgx.CollectOneRow(rows, rowToEvent)

	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, pgx.ErrNoRows):
		current, err := r.explainNotUpdated(ctx, id, models.EventApproved)
		if err != nil {
			return current, err
		}
		// Approved but new end is before the window start
		return current, apperrors.InvalidArgument("betting end %s is before betting start", end.Format(time.RFC3339))
	default:
		return event, apperrors.StoreError(err)
	}
}

// Conditional update matched no rows. Find out why
func (r *EventRepo) explainNotUpdated(ctx context.Context, id uuid.UUID, expected models.EventStatus) (models.Event, error) {
	current, err := r.GetEvent(ctx, id, false)
	if err != nil {
		return current, err
	}

	switch {
	case current.Status == expected:
	case current.Status.IsTerminal():
		return current, fmt.Errorf("%w: event is %s and can no longer change", apperrors.ErrInvalidState, current.Status)
	default:
		return current, fmt.Errorf("%w: event is %s, expected %s", apperrors.ErrInvalidState, current.Status, expected)
	}

	return current, nil
}

func (r *EventRepo) ListEvents(ctx context.Context, opts repository.ListEventsOpts) iter.Seq2[models.Event, error] {
	query, args := buildListEvents(opts)

	return func(yield func(models.Event, error) bool) {
		rows, err := r.DB.Query(ctx, query, args...)
		if err != nil {
			yield(models.Event{}, apperrors.StoreError(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			event, err := rowToEvent(rows)
			if err != nil {
				yield(models.Event{}, apperrors.StoreError(err))
				return
			}

			if !yield(event, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(models.Event{}, apperrors.StoreError(err))
		}
	}
}

func buildListEvents(opts repository.ListEventsOpts) (string, []any) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(opts.Statuses) > 0 {
		statuses := make([]int16, 0, len(opts.Statuses))
		for _, s := range opts.Statuses {
			statuses = append(statuses, int16(s))
		}
		where = append(where, "status = ANY("+arg(statuses)+"::smallint[])")
	}
	if opts.EndsAfter != nil {
		where = append(where, "betting_end > "+arg(*opts.EndsAfter))
	}
	if opts.EndedBy != nil {
		where = append(where, "betting_end <= "+arg(*opts.EndedBy))
	}
	if opts.Keyword != "" {
		pattern := arg("%" + escapeLike(opts.Keyword) + "%")
		where = append(where, "(title ILIKE "+pattern+" OR description ILIKE "+pattern+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + eventColumns + " FROM events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at, id")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}

	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func rowToEvent(row pgx.CollectableRow) (models.Event, error) {
	var (
		e      models.Event
		status int16
	)
	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Title, &e.Description, &e.Organizer, &e.QuotaValue, &e.EventDate,
		&status, &e.BettingStart, &e.BettingEnd,
	)
	e.Status = models.EventStatus(status)
	return e, err
}
