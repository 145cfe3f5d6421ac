package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrAccountNotFound      = fmt.Errorf("account %w", ErrNotFound)
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrBalanceInsufficient  = errors.New("insufficient balance")

	ErrEventNotFound = fmt.Errorf("event %w", ErrNotFound)

	ErrWindowClosed = errors.New("betting window is closed")
	ErrBelowMinimum = errors.New("amount is below the minimum bet")
)

// InvalidArgument returns error with human-readable details that still matches ErrInvalidArgument
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StoreError marks infrastructure failure, caller may retry it later
func StoreError(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Returned when a conditional debit did not apply because the balance is too low
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

// Smallest shortfall reported. Balance may grow between the failed debit and the read of it
var minShortfall = decimal.New(1, -2)

func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	shortfall := e.Required.Sub(e.Available)
	if shortfall.LessThan(minShortfall) {
		return minShortfall
	}
	return shortfall
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: required %s, available %s, shortfall %s",
		ErrBalanceInsufficient, e.Required.StringFixed(2), e.Available.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrBalanceInsufficient
}

// Returned when the amount does not buy a single quota
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("%s: minimum is %s", ErrBelowMinimum, e.Minimum.StringFixed(2))
}

func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}
