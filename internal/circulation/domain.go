// internal/circulation/domain.go
package circulation

import (
	"errors"
	"time"
)

const (
	// DefaultAllowedDays is how long a book may be kept without a fee.
	DefaultAllowedDays = 30

	// DefaultFeePerDay is charged for every day past the allowance.
	DefaultFeePerDay = 0.5
)

var (
	ErrReaderNotLoggedIn   = errors.New("reader is not logged in")
	ErrHasOverdueBooks     = errors.New("reader has overdue books")
	ErrBookUnavailable     = errors.New("book is not available")
	ErrBorrowLimitExceeded = errors.New("borrow limit exceeded")
	ErrRecordNotFound      = errors.New("no open borrow record")

	// ErrPaymentMismatch is transient: the return keeps waiting for payment.
	ErrPaymentMismatch = errors.New("payment does not match the fee owed")

	ErrReturnCancelled   = errors.New("return cancelled")
	ErrInvalidTransition = errors.New("invalid return state transition")
)

// Record is a single borrow transaction. A record is open until the book
// comes back; records are never deleted.
type Record struct {
	ReaderID   int64     `json:"reader_id"`
	BookID     int       `json:"book_id"`
	BorrowDate time.Time `json:"borrow_date"`
	ReturnDate time.Time `json:"return_date,omitempty"`
	Returned   bool      `json:"returned"`
}

// Open reports whether the book has not been returned yet.
func (r Record) Open() bool {
	return !r.Returned
}

// Policy holds the loan allowance and the overdue fee rate.
type Policy struct {
	AllowedDays int     `json:"allowed_days"`
	FeePerDay   float64 `json:"fee_per_day"`
}

// DefaultPolicy returns the standard 30 day, 0.5 per day policy.
func DefaultPolicy() Policy {
	return Policy{
		AllowedDays: DefaultAllowedDays,
		FeePerDay:   DefaultFeePerDay,
	}
}
