package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFinancialYearLocked     = errors.New("financial year is locked")
	ErrCodeGenerationExhausted = errors.New("no free transaction number")
	ErrUnbalancedVoucher       = errors.New("voucher debit and credit totals differ")
	ErrInvalidDocument         = errors.New("invalid document")
	ErrInvalidState            = errors.New("invalid document state")
)

type FinancialYearLockedError struct {
	FinancialYearID int
	YearNo          int
	Locked          bool
	Inactive        bool
}

func (e *FinancialYearLockedError) Error() string {
	reason := "locked"
	if e.Inactive && !e.Locked {
		reason = "inactive"
	}
	return fmt.Sprintf("financial year %d (year %d) is %s", e.FinancialYearID, e.YearNo, reason)
}

func (e *FinancialYearLockedError) Unwrap() error {
	return ErrFinancialYearLocked
}

// CheckFinancialYear fails unless fy accepts writes.
func CheckFinancialYear(fy FinancialYear) error {
	if fy.Writable() {
		return nil
	}
	return &FinancialYearLockedError{
		FinancialYearID: fy.ID,
		YearNo:          fy.YearNo,
		Locked:          fy.Locked,
		Inactive:        !fy.Active,
	}
}

type ValidationError struct {
	Err     error
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func Invalid(details ...string) error {
	return &ValidationError{Err: ErrInvalidDocument, Details: details}
}
