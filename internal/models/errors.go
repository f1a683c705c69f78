package models

import (
	"errors"
	"fmt"
)

// Lookup failures wrap ErrNotFound, so callers can match either the
// specific entity or any missing record.
var (
	ErrNotFound         = errors.New("not found")
	ErrLoanNotFound     = fmt.Errorf("loan %w", ErrNotFound)
	ErrCreditorNotFound = fmt.Errorf("creditor %w", ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("payment %w", ErrNotFound)

	ErrInvalidInput = errors.New("invalid input")
)
