package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/repository"
)

// NewMessage serializes payload into outbox message. Key selects the kafka partition
func NewMessage(topic string, key uuid.UUID, payload any) (models.OutboxMessage, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return models.OutboxMessage{}, fmt.Errorf("marshal %s message: %w", topic, err)
	}

	return models.OutboxMessage{
		Topic:   topic,
		Key:     key.String(),
		Payload: value,
	}, nil
}

// Enqueue stores message in outbox. Call it within the transaction of the change the message describes
func Enqueue(ctx context.Context, outbox repository.OutboxRepo, topic string, key uuid.UUID, payload any) error {
	msg, err := NewMessage(topic, key, payload)
	if err != nil {
		return err
	}

	_, err = outbox.Enqueue(ctx, msg)
	return err
}

type Deposited struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	At        time.Time       `json:"at"`
}

type Withdrawn struct {
	AccountID    uuid.UUID       `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Tax          decimal.Decimal `json:"tax"`
	TotalDebited decimal.Decimal `json:"total_debited"`
	Balance      decimal.Decimal `json:"balance"`
	At           time.Time       `json:"at"`
}

type EventStatusChanged struct {
	EventID      uuid.UUID  `json:"event_id"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	BettingStart *time.Time `json:"betting_start,omitempty"`
	BettingEnd   *time.Time `json:"betting_end,omitempty"`
	At           time.Time  `json:"at"`
}

type BetPlaced struct {
	BetID    uuid.UUID       `json:"bet_id"`
	EventID  uuid.UUID       `json:"event_id"`
	BettorID uuid.UUID       `json:"bettor_id"`
	Quotas   int64           `json:"quotas"`
	Stake    decimal.Decimal `json:"stake"`
	At       time.Time       `json:"at"`
}
