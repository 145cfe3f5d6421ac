package wallet

import (
	"github.com/shopspring/decimal"
)

var (
	rate4 = decimal.RequireFromString("0.04")
	rate3 = decimal.RequireFromString("0.03")
	rate2 = decimal.RequireFromString("0.02")
	rate1 = decimal.RequireFromString("0.01")

	hundred         = decimal.NewFromInt(100)
	thousand        = decimal.NewFromInt(1000)
	fiveThousand    = decimal.NewFromInt(5000)
	hundredThousand = decimal.NewFromInt(100000)
)

// TaxRate returns withdrawal tax rate for requested amount
// Tiers are closed at their upper bound: 1000 is taxed at 3%, 5000 at 2%
func TaxRate(amount decimal.Decimal) decimal.Decimal {
	switch {
	case amount.LessThan(hundred):
		return rate4
	case amount.LessThanOrEqual(thousand):
		return rate3
	case amount.LessThanOrEqual(fiveThousand):
		return rate2
	case amount.LessThanOrEqual(hundredThousand):
		return rate1
	default:
		return decimal.Zero
	}
}

// Tax charged on top of withdrawal amount, rounded half away from zero to cents
func Tax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(TaxRate(amount)).Round(2)
}
