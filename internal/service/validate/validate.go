package validate

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/betplatform/internal/apperrors"
)

// Ledger keeps NUMERIC(20, 2), amounts above this are rejected before reaching it
var MaxAmount = decimal.New(1, 15)

// Amount has to be positive with at most 2 decimal places
func Amount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return apperrors.InvalidArgument("amount must be positive, got %s", amount)
	case !amount.Equal(amount.Truncate(2)):
		return apperrors.InvalidArgument("amount must have at most 2 decimal places, got %s", amount)
	case amount.GreaterThan(MaxAmount):
		return apperrors.InvalidArgument("amount must not exceed %s", MaxAmount)
	}

	return nil
}

func ID(name string, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperrors.InvalidArgument("%s is required", name)
	}

	return nil
}
