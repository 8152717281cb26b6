// internal/integrity/integrity.go
package integrity

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/library"
)

// Check defines one invariant over a library snapshot
type Check struct {
	Name       string
	Hypothesis string
	Verify     func(library.Snapshot) []Violation
}

// Violation is a single breach of a check's hypothesis
type Violation struct {
	Check   string `json:"check"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Check, v.Subject, v.Message)
}

// Report captures the outcome of running every registered check
type Report struct {
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
	Checks         []string    `json:"checks"`
	HypothesisHeld bool        `json:"hypothesis_held"`
	Violations     []Violation `json:"violations"`
}

// Engine runs integrity checks against snapshots
type Engine struct {
	tracer trace.Tracer
	checks []Check
	mu     sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer used for check runs.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// NewEngine returns an engine with the default checks registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tracer: otel.Tracer("librarydesk/integrity"),
		checks: DefaultChecks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a check to the engine
func (e *Engine) Register(c Check) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks = append(e.checks, c)
}

// Checks returns the registered checks.
func (e *Engine) Checks() []Check {
	e.mu.Lock()
	defer e.mu.Unlock()
	checks := make([]Check, len(e.checks))
	copy(checks, e.checks)
	return checks
}

// Run verifies every registered check against snap.
func (e *Engine) Run(ctx context.Context, snap library.Snapshot) Report {
	_, span := e.tracer.Start(ctx, "integrity.run",
		trace.WithAttributes(
			attribute.Int("library.books", len(snap.Books)),
			attribute.Int("library.readers", len(snap.Readers)),
			attribute.Int("library.records", len(snap.Records)),
		),
	)
	defer span.End()

	report := Report{StartTime: time.Now()}
	for _, check := range e.Checks() {
		span.AddEvent("verifying", trace.WithAttributes(attribute.String("check.name", check.Name)))
		report.Checks = append(report.Checks, check.Name)
		report.Violations = append(report.Violations, check.Verify(snap)...)
	}
	report.HypothesisHeld = len(report.Violations) == 0
	report.EndTime = time.Now()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", report.HypothesisHeld),
		attribute.Int("violations", len(report.Violations)),
	)

	return report
}

// Run verifies the default checks against snap.
func Run(ctx context.Context, snap library.Snapshot) Report {
	return NewEngine().Run(ctx, snap)
}

// PrintReport writes a human-readable summary of r.
func PrintReport(w io.Writer, r Report) {
	if r.HypothesisHeld {
		fmt.Fprintf(w, "✅ All %d checks held\n", len(r.Checks))
		return
	}

	fmt.Fprintf(w, "❌ Integrity violated\n")
	fmt.Fprintf(w, "⚠️  Violations detected: %d\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(w, "   - %s\n", v)
	}
}
