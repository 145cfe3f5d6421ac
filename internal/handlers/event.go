package handlers

import (
	"iter"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/service/event"
)

type eventResponse struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Organizer    string     `json:"organizer"`
	QuotaValue   string     `json:"quota_value"`
	EventDate    *time.Time `json:"event_date,omitempty"`
	Status       string     `json:"status"`
	BettingStart *time.Time `json:"betting_start,omitempty"`
	BettingEnd   *time.Time `json:"betting_end,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newEventResponse(e models.Event) eventResponse {
	return eventResponse{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Organizer:    e.Organizer,
		QuotaValue:   e.QuotaValue.StringFixed(2),
		EventDate:    e.EventDate,
		Status:       e.Status.String(),
		BettingStart: e.BettingStart,
		BettingEnd:   e.BettingEnd,
		CreatedAt:    e.CreatedAt,
	}
}

// Result of status change
type transitionResponse struct {
	ID      uuid.UUID `json:"id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

func handleSubmitEvent(eventService EventService, l logger.Logger) http.Handler {
	type request struct {
		Title       string          `json:"title" validate:"required,max=255"`
		Description string          `json:"description" validate:"required,max=255"`
		Organizer   string          `json:"organizer" validate:"required,email,max=255"`
		QuotaValue  decimal.Decimal `json:"quota_value" validate:"required,money"`
		EventDate   *time.Time      `json:"event_date"`
	}

	type response struct {
		ID uuid.UUID `json:"id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submit, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		e, err := eventService.Submit(r.Context(), event.SubmitParams{
			Title:       submit.Title,
			Description: submit.Description,
			Organizer:   submit.Organizer,
			QuotaValue:  submit.QuotaValue,
			EventDate:   submit.EventDate,
		})
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{ID: e.ID}, http.StatusCreated)
	})
}

func handleEvaluateEvent(eventService EventService, l logger.Logger) http.Handler {
	type request struct {
		Approve *bool `json:"approve" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		evaluate, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		e, err := eventService.Evaluate(r.Context(), id, *evaluate.Approve)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		message := "Event denied"
		if e.Status == models.EventApproved {
			message = "Event approved"
		}
		render.JSON(w, transitionResponse{ID: e.ID, Status: e.Status.String(), Message: message})
	})
}

func handleFinishEvent(eventService EventService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		e, err := eventService.Finish(r.Context(), id)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSON(w, transitionResponse{ID: e.ID, Status: e.Status.String(), Message: "Event finished"})
	})
}

func handleSetBettingEnd(eventService EventService, l logger.Logger) http.Handler {
	type request struct {
		BettingEnd time.Time `json:"betting_end" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		end, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		e, err := eventService.SetBettingEnd(r.Context(), id, end.BettingEnd)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSON(w, newEventResponse(e))
	})
}

// List events by 'status' query parameter, approved by default
func handleListEvents(eventService EventService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("status")
		if filter == "" {
			filter = event.FilterApproved
		}

		events, err := eventService.List(r.Context(), filter)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		renderEvents(w, l, events)
	})
}

func handleSearchEvents(eventService EventService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events, err := eventService.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			serviceError(w, l, err)
			return
		}

		renderEvents(w, l, events)
	})
}

// Collect events before writing anything, so failure in the middle still gets proper status
func renderEvents(w http.ResponseWriter, l logger.Logger, events iter.Seq2[models.Event, error]) {
	response := make([]eventResponse, 0)
	for e, err := range events {
		if err != nil {
			serviceError(w, l, err)
			return
		}
		response = append(response, newEventResponse(e))
	}

	render.JSON(w, response)
}
