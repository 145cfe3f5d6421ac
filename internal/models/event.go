package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus int16

const (
	EventPending  EventStatus = 1
	EventApproved EventStatus = 2
	EventDenied   EventStatus = 3
	EventFinished EventStatus = 4
)

func (s EventStatus) String() string {
	switch s {
	case EventPending:
		return "pending"
	case EventApproved:
		return "approved"
	case EventDenied:
		return "denied"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", int16(s))
	}
}

// Terminal statuses never change again
func (s EventStatus) IsTerminal() bool {
	return s == EventDenied || s == EventFinished
}

type Event struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Title       string
	Description string
	Organizer   string
	QuotaValue  decimal.Decimal
	EventDate   *time.Time
	Status      EventStatus

	// Betting window [start, end), set only for approved and finished events
	BettingStart *time.Time
	BettingEnd   *time.Time
}

// AcceptsBetsAt reports whether the betting window is open at the moment
func (e Event) AcceptsBetsAt(now time.Time) bool {
	if e.Status != EventApproved || e.BettingStart == nil || e.BettingEnd == nil {
		return false
	}
	return !now.Before(*e.BettingStart) && now.Before(*e.BettingEnd)
}
