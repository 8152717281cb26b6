// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"librarydesk/internal/calendar"
	"librarydesk/internal/catalog"
	"librarydesk/internal/membership"
)

const (
	// BorrowsMetric counts successful borrows.
	BorrowsMetric = "library_borrows_total"

	// ReturnsMetric counts completed returns.
	ReturnsMetric = "library_returns_total"

	// BorrowRejectionsMetric counts refused borrows by reason.
	BorrowRejectionsMetric = "library_borrow_rejections_total"

	// FeesCollectedMetric sums the overdue fees paid on return.
	FeesCollectedMetric = "library_overdue_fees_collected_total"

	instrumentationName = "librarydesk/circulation"
)

// ledger implements the Service interface. It owns the borrow records and
// drives Catalog and Membership through their narrow interfaces.
type ledger struct {
	mu      sync.Mutex
	records []Record

	catalog Catalog
	members Membership
	policy  Policy

	logger      *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	metrics     instruments
	mismatchLog *rate.Sometimes
}

type instruments struct {
	borrows    metric.Int64Counter
	returns    metric.Int64Counter
	rejections metric.Int64Counter
	fees       metric.Float64Counter
}

// Option configures the ledger.
type Option func(*ledger)

// WithPolicy replaces the default loan policy.
func WithPolicy(p Policy) Option {
	return func(l *ledger) {
		l.policy = p
	}
}

// WithLogger sets the logger used for circulation events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ledger) {
		l.logger = logger
	}
}

// WithTracer sets the tracer used for borrow and return spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *ledger) {
		l.tracer = tracer
	}
}

// WithMeter sets the meter the circulation counters are created from.
func WithMeter(meter metric.Meter) Option {
	return func(l *ledger) {
		l.meter = meter
	}
}

// NewService creates a new circulation ledger on top of a catalog and a
// membership registry.
func NewService(books Catalog, members Membership, opts ...Option) Service {
	l := &ledger{
		catalog:     books,
		members:     members,
		policy:      DefaultPolicy(),
		logger:      slog.Default(),
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
		mismatchLog: &rate.Sometimes{First: 3, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.metrics = newInstruments(l.meter)
	return l
}

func newInstruments(meter metric.Meter) instruments {
	var (
		inst instruments
		err  error
	)
	if inst.borrows, err = meter.Int64Counter(BorrowsMetric,
		metric.WithDescription("Books lent to readers.")); err != nil {
		otel.Handle(err)
	}
	if inst.returns, err = meter.Int64Counter(ReturnsMetric,
		metric.WithDescription("Books returned by readers.")); err != nil {
		otel.Handle(err)
	}
	if inst.rejections, err = meter.Int64Counter(BorrowRejectionsMetric,
		metric.WithDescription("Borrow attempts refused by policy.")); err != nil {
		otel.Handle(err)
	}
	if inst.fees, err = meter.Float64Counter(FeesCollectedMetric,
		metric.WithDescription("Overdue fees paid on return.")); err != nil {
		otel.Handle(err)
	}
	return inst
}

// Policy returns the loan policy in force.
func (l *ledger) Policy() Policy {
	return l.policy
}

// OverdueFee computes the fee owed for a record as of the given date.
func (l *ledger) OverdueFee(record Record, asOf time.Time) float64 {
	return l.policy.OverdueFee(record, asOf)
}

// HasOverdue reports whether the reader holds any book past the allowance.
func (l *ledger) HasOverdue(_ context.Context, readerID int64, asOf time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasOverdue(readerID, asOf)
}

func (l *ledger) hasOverdue(readerID int64, asOf time.Time) bool {
	for _, r := range l.records {
		if r.ReaderID == readerID && l.policy.IsOverdue(r, asOf) {
			return true
		}
	}
	return false
}

// Borrow lends a book to a reader. All checks run before anything is
// changed; a failure after the first change is compensated.
func (l *ledger) Borrow(ctx context.Context, readerID int64, bookID int, today time.Time) (*Record, error) {
	ctx, span := l.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.Int64("reader.id", readerID),
			attribute.Int("book.id", bookID),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.borrow(ctx, readerID, bookID, calendar.DateOf(today))
	if err != nil {
		reason := rejectionReason(err)
		l.metrics.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		l.logger.InfoContext(ctx, "borrow refused", "reader_id", readerID, "book_id", bookID, "reason", reason)
		return nil, err
	}

	l.metrics.borrows.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("borrow.success", true))
	l.logger.InfoContext(ctx, "book borrowed", "reader_id", readerID, "book_id", bookID,
		"borrow_date", calendar.Format(record.BorrowDate))

	return record, nil
}

func (l *ledger) borrow(ctx context.Context, readerID int64, bookID int, today time.Time) (*Record, error) {
	// Step 1: A reader must be supplied
	if readerID == 0 {
		return nil, ErrReaderNotLoggedIn
	}
	reader, err := l.members.GetReader(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}

	// Step 2: Any overdue loan blocks new borrowing
	if l.hasOverdue(readerID, today) {
		return nil, ErrHasOverdueBooks
	}

	// Step 3: Check book availability
	book, err := l.catalog.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrBookUnavailable, err)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if !book.Available {
		return nil, fmt.Errorf("%w: book %d is lent out", ErrBookUnavailable, bookID)
	}

	// Step 4: Borrow limit
	if !l.members.CanBorrow(reader) {
		return nil, fmt.Errorf("%w: reader holds %d of %d books", ErrBorrowLimitExceeded, len(reader.BorrowedBookIDs), reader.MaxBooks)
	}

	// Step 5: Apply the changes
	if err := l.catalog.SetAvailability(ctx, bookID, false); err != nil {
		return nil, fmt.Errorf("failed to mark book unavailable: %w", err)
	}

	if err := l.members.RecordBorrow(ctx, readerID, bookID); err != nil {
		l.logger.WarnContext(ctx, "compensating failed borrow: restoring book availability", "book_id", bookID, "error", err)
		if cerr := l.catalog.SetAvailability(ctx, bookID, true); cerr != nil {
			l.logger.ErrorContext(ctx, "failed to compensate book availability", "book_id", bookID, "error", cerr)
		}
		return nil, fmt.Errorf("failed to record borrow: %w", err)
	}

	record := Record{
		ReaderID:   readerID,
		BookID:     bookID,
		BorrowDate: today,
	}
	l.records = append(l.records, record)

	return &record, nil
}

// StartReturn looks up the open record for the pair and prices the return.
// The returned Return awaits payment when a fee is due.
func (l *ledger) StartReturn(ctx context.Context, readerID int64, bookID int, today time.Time) (*Return, error) {
	if readerID == 0 {
		return nil, ErrReaderNotLoggedIn
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	index := l.openRecordIndex(readerID, bookID)
	if index < 0 {
		return nil, fmt.Errorf("%w: reader %d, book %d", ErrRecordNotFound, readerID, bookID)
	}

	today = calendar.DateOf(today)
	ret := &Return{
		owner:    l,
		index:    index,
		readerID: readerID,
		bookID:   bookID,
		today:    today,
		fee:      l.policy.OverdueFee(l.records[index], today),
		state:    Settled,
	}
	if ret.fee > 0 {
		ret.state = AwaitingPayment
		l.logger.InfoContext(ctx, "overdue fee due", "reader_id", readerID, "book_id", bookID, "fee", ret.fee)
	}

	return ret, nil
}

// CompleteReturn closes the record of a settled return, makes the book
// available again and removes it from the reader's holdings.
func (l *ledger) CompleteReturn(ctx context.Context, ret *Return) (*Record, error) {
	ctx, span := l.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(
			attribute.Int64("reader.id", ret.readerID),
			attribute.Int("book.id", ret.bookID),
			attribute.Float64("return.fee", ret.fee),
		),
	)
	defer span.End()

	switch {
	case ret.owner != l:
		return nil, fmt.Errorf("%w: return belongs to another ledger", ErrInvalidTransition)
	case ret.state == Cancelled:
		return nil, ErrReturnCancelled
	case ret.state != Settled:
		return nil, fmt.Errorf("%w: complete in state %s", ErrInvalidTransition, ret.state)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ret.index >= len(l.records) {
		return nil, fmt.Errorf("%w: reader %d, book %d", ErrRecordNotFound, ret.readerID, ret.bookID)
	}
	record := &l.records[ret.index]
	if !record.Open() || record.ReaderID != ret.readerID || record.BookID != ret.bookID {
		return nil, fmt.Errorf("%w: reader %d, book %d", ErrRecordNotFound, ret.readerID, ret.bookID)
	}

	if err := l.catalog.SetAvailability(ctx, ret.bookID, true); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark book available: %w", err)
	}

	if err := l.members.RecordReturn(ctx, ret.readerID, ret.bookID); err != nil {
		l.logger.WarnContext(ctx, "compensating failed return: restoring book unavailability", "book_id", ret.bookID, "error", err)
		if cerr := l.catalog.SetAvailability(ctx, ret.bookID, false); cerr != nil {
			l.logger.ErrorContext(ctx, "failed to compensate book availability", "book_id", ret.bookID, "error", cerr)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to record return: %w", err)
	}

	record.Returned = true
	record.ReturnDate = ret.today
	ret.state = Completed

	l.metrics.returns.Add(ctx, 1)
	if ret.fee > 0 {
		l.metrics.fees.Add(ctx, ret.fee)
	}
	span.SetAttributes(attribute.Bool("return.success", true))
	l.logger.InfoContext(ctx, "book returned", "reader_id", ret.readerID, "book_id", ret.bookID, "fee", ret.fee)

	closed := *record
	return &closed, nil
}

// ReturnBook runs a whole return, asking the payer for the fee as many
// times as it takes. A zero amount or a payer error aborts the return
// without changing anything.
func (l *ledger) ReturnBook(ctx context.Context, readerID int64, bookID int, today time.Time, payer Payer) (*Record, error) {
	ret, err := l.StartReturn(ctx, readerID, bookID, today)
	if err != nil {
		return nil, err
	}

	for ret.State() == AwaitingPayment {
		if payer == nil {
			_ = ret.Cancel()
			return nil, fmt.Errorf("%w: fee of %s due but no payment source", ErrReturnCancelled, formatAmount(ret.Fee()))
		}

		amount, err := payer.RequestPayment(ctx, ret.Fee(), ret.Attempts()+1)
		if err != nil {
			_ = ret.Cancel()
			return nil, fmt.Errorf("failed to collect payment: %w", err)
		}

		if err := ret.Pay(amount); err != nil {
			if errors.Is(err, ErrPaymentMismatch) {
				l.mismatchLog.Do(func() {
					l.logger.WarnContext(ctx, "payment rejected", "reader_id", readerID, "book_id", bookID,
						"fee", ret.Fee(), "paid", amount, "attempt", ret.Attempts())
				})
				continue
			}
			l.logger.InfoContext(ctx, "return cancelled", "reader_id", readerID, "book_id", bookID)
			return nil, err
		}
	}

	return l.CompleteReturn(ctx, ret)
}

// Records returns a copy of every borrow record in creation order.
func (l *ledger) Records(_ context.Context) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]Record, len(l.records))
	copy(records, l.records)
	return records
}

// OpenRecords returns the reader's unreturned loans.
func (l *ledger) OpenRecords(_ context.Context, readerID int64) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var open []Record
	for _, r := range l.records {
		if r.ReaderID == readerID && r.Open() {
			open = append(open, r)
		}
	}
	return open
}

// Restore replaces the ledger contents with persisted records.
func (l *ledger) Restore(ctx context.Context, records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make([]Record, len(records))
	copy(l.records, records)

	l.logger.DebugContext(ctx, "ledger restored", "records", len(records))
}

func (l *ledger) openRecordIndex(readerID int64, bookID int) int {
	for i, r := range l.records {
		if r.ReaderID == readerID && r.BookID == bookID && r.Open() {
			return i
		}
	}
	return -1
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrReaderNotLoggedIn):
		return "reader_not_logged_in"
	case errors.Is(err, membership.ErrNotFound):
		return "reader_not_found"
	case errors.Is(err, ErrHasOverdueBooks):
		return "has_overdue_books"
	case errors.Is(err, ErrBookUnavailable):
		return "book_unavailable"
	case errors.Is(err, ErrBorrowLimitExceeded):
		return "borrow_limit_exceeded"
	default:
		return "internal"
	}
}
