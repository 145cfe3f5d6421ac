package models

import (
	"github.com/google/uuid"
)

// Authenticated caller. ID is the account id in the ledger
type User struct {
	ID      uuid.UUID
	Email   string
	IsAdmin bool
}
