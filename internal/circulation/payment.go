// internal/circulation/payment.go
package circulation

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ReturnState is the position of a Return in the payment workflow.
type ReturnState int

const (
	// AwaitingPayment blocks the return until the exact fee is paid or the
	// return is cancelled.
	AwaitingPayment ReturnState = iota + 1
	Settled
	Cancelled
	Completed
)

func (s ReturnState) String() string {
	switch s {
	case AwaitingPayment:
		return "awaiting_payment"
	case Settled:
		return "settled"
	case Cancelled:
		return "cancelled"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Payer supplies payment amounts while a return is awaiting payment.
// attempt starts at 1 and grows after every rejected amount. Returning 0
// cancels the return.
type Payer interface {
	RequestPayment(ctx context.Context, fee float64, attempt int) (float64, error)
}

// PayerFunc adapts a function to the Payer interface.
type PayerFunc func(ctx context.Context, fee float64, attempt int) (float64, error)

// RequestPayment calls f.
func (f PayerFunc) RequestPayment(ctx context.Context, fee float64, attempt int) (float64, error) {
	return f(ctx, fee, attempt)
}

// Return tracks one book return from lookup to completion. It is created by
// StartReturn and finished by CompleteReturn; nothing in the library changes
// before completion.
type Return struct {
	owner    *ledger
	index    int
	readerID int64
	bookID   int
	today    time.Time
	fee      float64
	state    ReturnState
	attempts int
}

// ReaderID returns the reader giving the book back.
func (r *Return) ReaderID() int64 { return r.readerID }

// BookID returns the book being returned.
func (r *Return) BookID() int { return r.bookID }

// Fee returns the overdue fee owed, zero when none is due.
func (r *Return) Fee() float64 { return r.fee }

// State returns the current workflow state.
func (r *Return) State() ReturnState { return r.state }

// Attempts counts the amounts offered so far.
func (r *Return) Attempts() int { return r.attempts }

// Pay offers an amount towards the fee. The exact fee settles the return,
// zero cancels it and any other amount is rejected with ErrPaymentMismatch
// while the return keeps waiting.
func (r *Return) Pay(amount float64) error {
	if r.state != AwaitingPayment {
		return fmt.Errorf("%w: pay in state %s", ErrInvalidTransition, r.state)
	}
	r.attempts++

	switch cents(amount) {
	case 0:
		r.state = Cancelled
		return ErrReturnCancelled
	case cents(r.fee):
		r.state = Settled
		return nil
	default:
		return fmt.Errorf("%w: paid %s, owed %s", ErrPaymentMismatch, formatAmount(amount), formatAmount(r.fee))
	}
}

// Cancel abandons the return. The borrow record stays open.
func (r *Return) Cancel() error {
	if r.state == Completed {
		return fmt.Errorf("%w: cancel in state %s", ErrInvalidTransition, r.state)
	}
	r.state = Cancelled
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
