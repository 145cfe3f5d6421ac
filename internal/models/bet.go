package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Bet struct {
	ID       uuid.UUID
	PlacedAt time.Time
	EventID  uuid.UUID
	BettorID uuid.UUID
	Quotas   int64

	// Stake = Quotas * event quota value, debited from the bettor
	Stake decimal.Decimal

	// Part of submitted amount that did not buy a whole quota. Never debited, not persisted
	Remainder decimal.Decimal
}
