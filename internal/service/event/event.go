package event

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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

// Approved event accepts bets for about a month by default
const DefaultBettingWindow = 30 * 24 * time.Hour

// Search returns at most this many events
const SearchLimit = 100

// List filters
const (
	FilterPending  = "pending"
	FilterApproved = "approved"
	FilterDenied   = "denied"
	FilterPast     = "past"
	FilterFinished = "finished"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

type SubmitParams struct {
	Title       string `validate:"required,max=255"`
	Description string `validate:"required,max=255"`
	Organizer   string `validate:"required,email,max=255"`
	QuotaValue  decimal.Decimal
	EventDate   *time.Time
}

type Service struct {
	storage repository.Storage
	metrics *metrics.Metrics
	l       logger.Logger

	// Duration of betting window set on approval
	BettingWindow time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

func NewService(storage repository.Storage, m *metrics.Metrics, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage:       storage,
		metrics:       m,
		l:             l,
		BettingWindow: DefaultBettingWindow,
		Now:           time.Now,
	}
}

// Submit creates pending event
func (s *Service) Submit(ctx context.Context, p SubmitParams) (models.Event, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Organizer = strings.TrimSpace(p.Organizer)

	if err := structValidator.Struct(p); err != nil {
		return models.Event{}, validationError(err)
	}
	if err := validate.Amount(p.QuotaValue); err != nil {
		return models.Event{}, fmt.Errorf("quota value: %w", err)
	}

	now := s.Now()
	event, err := s.storage.Event().CreateEvent(ctx, models.Event{
		ID:          uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       p.Title,
		Description: p.Description,
		Organizer:   p.Organizer,
		QuotaValue:  p.QuotaValue,
		EventDate:   p.EventDate,
		Status:      models.EventPending,
	})
	if err != nil {
		return event, fmt.Errorf("submit event: %w", err)
	}

	s.l.Info("event submitted", "event_id", event.ID, "organizer", event.Organizer)
	return event, nil
}

// Evaluate approves or denies pending event. Decided events are rejected with apperrors.ErrInvalidState
func (s *Service) Evaluate(ctx context.Context, id uuid.UUID, approve bool) (models.Event, error) {
	if err := validate.ID("event id", id); err != nil {
		return models.Event{}, err
	}

	now := s.Now()
	params := repository.TransitionParams{
		ID:   id,
		From: models.EventPending,
		To:   models.EventDenied,
		At:   now,
	}
	if approve {
		end := now.Add(s.BettingWindow)
		params.To = models.EventApproved
		params.BettingStart = &now
		params.BettingEnd = &end
	}

	event, err := s.transition(ctx, params)
	if err != nil {
		return event, fmt.Errorf("evaluate event: %w", err)
	}

	return event, nil
}

// Finish closes betting on approved event and marks it finished
func (s *Service) Finish(ctx context.Context, id uuid.UUID) (models.Event, error) {
	if err := validate.ID("event id", id); err != nil {
		return models.Event{}, err
	}

	event, err := s.transition(ctx, repository.TransitionParams{
		ID:          id,
		From:        models.EventApproved,
		To:          models.EventFinished,
		At:          s.Now(),
		CloseWindow: true,
	})
	if err != nil {
		return event, fmt.Errorf("finish event: %w", err)
	}

	return event, nil
}

// SetBettingEnd moves betting end of approved event. New end has to be in the future
func (s *Service) SetBettingEnd(ctx context.Context, id uuid.UUID, end time.Time) (models.Event, error) {
	if err := validate.ID("event id", id); err != nil {
		return models.Event{}, err
	}

	now := s.Now()
	switch {
	case end.IsZero():
		return models.Event{}, apperrors.InvalidArgument("betting end is required")
	case !end.After(now):
		return models.Event{}, apperrors.InvalidArgument("betting end %s is in the past", end.Format(time.RFC3339))
	}

	event, err := s.storage.Event().SetBettingEnd(ctx, id, end, now)
	if err != nil {
		return event, fmt.Errorf("set betting end: %w", err)
	}

	s.l.Info("betting end changed", "event_id", id, "betting_end", end)
	return event, nil
}

// List events matching filter. Approved and past are split by betting end relative to the moment of iteration
func (s *Service) List(ctx context.Context, filter string) (iter.Seq2[models.Event, error], error) {
	var opts func(now time.Time) repository.ListEventsOpts

	switch strings.ToLower(filter) {
	case FilterPending:
		opts = byStatus(models.EventPending)
	case FilterDenied:
		opts = byStatus(models.EventDenied)
	case FilterFinished:
		opts = byStatus(models.EventFinished)
	case FilterApproved:
		opts = func(now time.Time) repository.ListEventsOpts {
			return repository.ListEventsOpts{Statuses: []models.EventStatus{models.EventApproved}, EndsAfter: &now}
		}
	case FilterPast:
		opts = func(now time.Time) repository.ListEventsOpts {
			return repository.ListEventsOpts{Statuses: []models.EventStatus{models.EventApproved}, EndedBy: &now}
		}
	default:
		return nil, apperrors.InvalidArgument("unknown filter %q, expected one of %s",
			filter, strings.Join([]string{FilterPending, FilterApproved, FilterDenied, FilterPast, FilterFinished}, ", "))
	}

	return s.list(ctx, opts), nil
}

// Search approved events still accepting bets by keyword in title or description
func (s *Service) Search(ctx context.Context, keyword string) (iter.Seq2[models.Event, error], error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperrors.InvalidArgument("search keyword is required")
	}

	return s.list(ctx, func(now time.Time) repository.ListEventsOpts {
		return repository.ListEventsOpts{
			Statuses:  []models.EventStatus{models.EventApproved},
			EndsAfter: &now,
			Keyword:   keyword,
			Limit:     SearchLimit,
		}
	}), nil
}

func (s *Service) list(ctx context.Context, opts func(now time.Time) repository.ListEventsOpts) iter.Seq2[models.Event, error] {
	return func(yield func(models.Event, error) bool) {
		for event, err := range s.storage.Event().ListEvents(ctx, opts(s.Now())) {
			if !yield(event, err) {
				return
			}
		}
	}
}

func byStatus(status models.EventStatus) func(time.Time) repository.ListEventsOpts {
	return func(time.Time) repository.ListEventsOpts {
		return repository.ListEventsOpts{Statuses: []models.EventStatus{status}}
	}
}

// Apply transition and enqueue status change message atomically
func (s *Service) transition(ctx context.Context, params repository.TransitionParams) (models.Event, error) {
	var event models.Event

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error

		event, err = storage.Event().TransitionEvent(ctx, params)
		if err != nil {
			return err
		}

		return contracts.Enqueue(ctx, storage.Outbox(), contracts.TopicEventStatusChanged, event.ID, contracts.EventStatusChanged{
			EventID:      event.ID,
			From:         params.From.String(),
			To:           event.Status.String(),
			BettingStart: event.BettingStart,
			BettingEnd:   event.BettingEnd,
			At:           params.At,
		})
	})
	if err != nil {
		return event, err
	}

	s.metrics.Transition(event.Status.String())
	s.l.Info("event status changed", "event_id", event.ID, "from", params.From, "to", event.Status)
	return event, nil
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperrors.InvalidArgument("%s", err)
	}

	problems := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", strings.ToLower(fieldErr.Field())))
		case "max":
			problems = append(problems, fmt.Sprintf("%s is longer than %s characters", strings.ToLower(fieldErr.Field()), fieldErr.Param()))
		case "email":
			problems = append(problems, fmt.Sprintf("%s must be an email", strings.ToLower(fieldErr.Field())))
		default:
			problems = append(problems, fmt.Sprintf("%s is invalid", strings.ToLower(fieldErr.Field())))
		}
	}

	return apperrors.InvalidArgument("%s", strings.Join(problems, "; "))
}
