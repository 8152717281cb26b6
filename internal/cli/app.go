// internal/cli/app.go
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"librarydesk/internal/calendar"
	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/integrity"
	"librarydesk/internal/library"
	"librarydesk/internal/session"
	"librarydesk/internal/store"
	"librarydesk/internal/telemetry"
)

// app is everything a command needs once configuration has been read.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	library  *library.Library
	store    *store.FileStore
	session  *session.Session
	clock    calendar.Clock
	shutdown telemetry.ShutdownFunc
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, clock calendar.Clock) (*app, error) {
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	lib := library.New(
		library.WithLogger(logger),
		library.WithPolicy(circulation.Policy{
			AllowedDays: cfg.Loan.AllowedDays,
			FeePerDay:   cfg.Loan.FeePerDay,
		}),
		library.WithMaxBooks(cfg.Readers.MaxBooks),
	)

	st := store.New(cfg.DataDir,
		store.WithFileNames(cfg.BooksFile, cfg.ReadersFile, cfg.BorrowsFile),
		store.WithStrict(cfg.StrictLoad),
		store.WithLogger(logger),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		library:  lib,
		store:    st,
		session:  session.New(lib.Membership(), lib.Ledger(), session.WithClock(clock), session.WithLogger(logger)),
		clock:    clock,
		shutdown: shutdown,
	}

	if err := a.load(ctx); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return a, nil
}

// load reads persisted state into the library and warns about any
// inconsistency found in it.
func (a *app) load(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load library data: %w", err)
	}

	report := integrity.Run(ctx, snap)
	for _, v := range report.Violations {
		a.logger.WarnContext(ctx, "inconsistent library data", "check", v.Check, "subject", v.Subject, "detail", v.Message)
	}

	a.library.Restore(ctx, snap)
	return nil
}

func (a *app) save(ctx context.Context) error {
	if err := a.store.Save(ctx, a.library.Snapshot(ctx)); err != nil {
		return fmt.Errorf("failed to save library data: %w", err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	return a.shutdown(ctx)
}
