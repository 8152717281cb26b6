// internal/library/library.go

// Package library wires the catalog, the membership registry and the borrow
// ledger into one unit and moves their state in and out as a Snapshot.
package library

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
)

const instrumentationName = "librarydesk/circulation"

// Snapshot is a detached copy of the whole library.
type Snapshot struct {
	Books        []catalog.Book
	Readers      []membership.Reader
	Records      []circulation.Record
	NextBookID   int
	NextReaderID int64
}

// Library owns the three services and the relations between them.
type Library struct {
	catalog    catalog.Service
	membership membership.Service
	ledger     circulation.Service
	logger     *slog.Logger
}

type options struct {
	logger         *slog.Logger
	policy         circulation.Policy
	maxBooks       int
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Library.
type Option func(*options)

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPolicy sets the loan policy of the ledger.
func WithPolicy(p circulation.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithMaxBooks sets the allowance given to newly registered readers.
func WithMaxBooks(n int) Option {
	return func(o *options) {
		o.maxBooks = n
	}
}

// WithTracerProvider sets where ledger spans are sent.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets where ledger counters are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// New builds an empty library.
func New(opts ...Option) *Library {
	o := options{
		logger:         slog.Default(),
		policy:         circulation.DefaultPolicy(),
		maxBooks:       membership.DefaultMaxBooks,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	books := catalog.NewService(catalog.WithLogger(o.logger))
	members := membership.NewService(
		membership.WithLogger(o.logger),
		membership.WithDefaultMaxBooks(o.maxBooks),
	)
	ledger := circulation.NewService(books, members,
		circulation.WithPolicy(o.policy),
		circulation.WithLogger(o.logger),
		circulation.WithTracer(o.tracerProvider.Tracer(instrumentationName)),
		circulation.WithMeter(o.meterProvider.Meter(instrumentationName)),
	)

	return &Library{
		catalog:    books,
		membership: members,
		ledger:     ledger,
		logger:     o.logger,
	}
}

// Catalog returns the book catalog.
func (l *Library) Catalog() catalog.Service { return l.catalog }

// Membership returns the reader registry.
func (l *Library) Membership() membership.Service { return l.membership }

// Ledger returns the borrow ledger.
func (l *Library) Ledger() circulation.Service { return l.ledger }

// Snapshot copies the current state of all three services.
func (l *Library) Snapshot(ctx context.Context) Snapshot {
	books := l.catalog.Books(ctx)
	readers := l.membership.Readers(ctx)

	snap := Snapshot{
		Books:        make([]catalog.Book, 0, len(books)),
		Readers:      make([]membership.Reader, 0, len(readers)),
		Records:      l.ledger.Records(ctx),
		NextBookID:   l.catalog.NextID(),
		NextReaderID: l.membership.NextID(),
	}
	for _, b := range books {
		snap.Books = append(snap.Books, *b)
	}
	for _, r := range readers {
		snap.Readers = append(snap.Readers, *r)
	}
	return snap
}

// Restore replaces the state of all three services with snap. The ID
// sequences end up past every restored ID and at least at the snapshot's
// next IDs.
func (l *Library) Restore(ctx context.Context, snap Snapshot) {
	l.catalog.Restore(ctx, snap.Books)
	l.membership.Restore(ctx, snap.Readers)
	l.ledger.Restore(ctx, snap.Records)
	l.catalog.ReserveIDsBelow(snap.NextBookID)
	l.membership.ReserveIDsBelow(snap.NextReaderID)

	l.logger.InfoContext(ctx, "library restored",
		"books", len(snap.Books),
		"readers", len(snap.Readers),
		"records", len(snap.Records),
	)
}
