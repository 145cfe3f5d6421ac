package models

import (
	"time"
)

// Message stored together with the change it describes and published later
type OutboxMessage struct {
	ID          int64
	CreatedAt   time.Time
	Topic       string
	Key         string
	Payload     []byte
	PublishedAt *time.Time
}
