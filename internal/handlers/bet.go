package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/handlers/userctx"
	"github.com/nkiryanov/betplatform/internal/logger"
)

func handlePlaceBet(bettingService BettingService, l logger.Logger) http.Handler {
	type response struct {
		BetID     uuid.UUID `json:"bet_id"`
		Quotas    int64     `json:"quotas"`
		Stake     string    `json:"stake"`
		Remainder string    `json:"remainder"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		eventID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		bet, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		placed, err := bettingService.PlaceBet(r.Context(), user.ID, eventID, bet.Amount)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{
			BetID:     placed.ID,
			Quotas:    placed.Quotas,
			Stake:     placed.Stake.StringFixed(2),
			Remainder: placed.Remainder.StringFixed(2),
		}, http.StatusCreated)
	})
}

func handleListBets(bettingService BettingService, l logger.Logger) http.Handler {
	type bet struct {
		ID       uuid.UUID `json:"id"`
		EventID  uuid.UUID `json:"event_id"`
		Quotas   int64     `json:"quotas"`
		Stake    string    `json:"stake"`
		PlacedAt time.Time `json:"placed_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		placed, err := bettingService.ListBets(r.Context(), user.ID)
		if err != nil {
			serviceError(w, l, err)
			return
		}

		bets := make([]bet, 0, len(placed))
		for _, b := range placed {
			bets = append(bets, bet{
				ID:       b.ID,
				EventID:  b.EventID,
				Quotas:   b.Quotas,
				Stake:    b.Stake.StringFixed(2),
				PlacedAt: b.PlacedAt,
			})
		}
		render.JSON(w, bets)
	})
}
