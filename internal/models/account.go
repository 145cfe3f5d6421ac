package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeBet        = "bet"
)

type Account struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Balance   decimal.Decimal
}

// Journal entry. Amount is what the account owner asked for, Tax is charged on top of it
type Transaction struct {
	ID          uuid.UUID
	ProcessedAt time.Time
	AccountID   uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Tax         decimal.Decimal
	Reference   *uuid.UUID // bet id for bet stakes
}

// Debited returns how much the transaction moved out of the account (zero for deposits)
func (t Transaction) Debited() decimal.Decimal {
	if t.Type == TransactionTypeDeposit {
		return decimal.Zero
	}
	return t.Amount.Add(t.Tax)
}

type Withdrawal struct {
	Amount       decimal.Decimal
	Tax          decimal.Decimal
	TotalDebited decimal.Decimal
	Balance      decimal.Decimal
}
