// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"librarydesk/internal/calendar"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
)

var (
	ErrAlreadyLoggedIn = errors.New("a reader is already logged in")
	ErrNotLoggedIn     = errors.New("no reader is logged in")
	ErrReaderNotFound  = errors.New("reader not found")
)

// Session is the single logged-in reader context of the desk. Borrow and
// return run on behalf of the current reader and are serialized by one
// lock.
type Session struct {
	mu sync.Mutex

	members membership.Service
	ledger  circulation.Service
	clock   calendar.Clock
	logger  *slog.Logger

	readerID int64
	id       uuid.UUID
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the source of "today" for borrow and return.
func WithClock(clock calendar.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New returns a logged-out session.
func New(members membership.Service, ledger circulation.Service, opts ...Option) *Session {
	s := &Session{
		members: members,
		ledger:  ledger,
		clock:   calendar.SystemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login makes readerID the current reader.
func (s *Session) Login(ctx context.Context, readerID int64) (*membership.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readerID != 0 {
		return nil, fmt.Errorf("%w: reader %d", ErrAlreadyLoggedIn, s.readerID)
	}

	reader, err := s.members.GetReader(ctx, readerID)
	if err != nil {
		if errors.Is(err, membership.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrReaderNotFound, readerID)
		}
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}

	s.readerID = reader.ID
	s.id = uuid.New()
	s.log().InfoContext(ctx, "reader logged in", "reader_id", reader.ID, "name", reader.Name)

	return reader, nil
}

// Logout ends the current session and returns the reader who left.
func (s *Session) Logout(ctx context.Context) (*membership.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readerID == 0 {
		return nil, ErrNotLoggedIn
	}

	reader, err := s.members.GetReader(ctx, s.readerID)
	if err != nil {
		reader = &membership.Reader{ID: s.readerID}
	}
	s.log().InfoContext(ctx, "reader logged out", "reader_id", s.readerID)

	s.readerID = 0
	s.id = uuid.Nil

	return reader, nil
}

// Current returns the logged-in reader.
func (s *Session) Current(ctx context.Context) (*membership.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readerID == 0 {
		return nil, ErrNotLoggedIn
	}
	return s.members.GetReader(ctx, s.readerID)
}

// ID returns the correlation ID of the active login, or the empty string
// when logged out.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readerID == 0 {
		return ""
	}
	return s.id.String()
}

// Borrow lends bookID to the current reader as of today.
func (s *Session) Borrow(ctx context.Context, bookID int) (*circulation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.ledger.Borrow(ctx, s.readerID, bookID, s.clock.Today())
	if err != nil {
		s.log().DebugContext(ctx, "borrow failed", "book_id", bookID, "error", err)
		return nil, err
	}
	return record, nil
}

// Return takes bookID back from the current reader, collecting any overdue
// fee through payer.
func (s *Session) Return(ctx context.Context, bookID int, payer circulation.Payer) (*circulation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.ledger.ReturnBook(ctx, s.readerID, bookID, s.clock.Today(), payer)
	if err != nil {
		s.log().DebugContext(ctx, "return failed", "book_id", bookID, "error", err)
		return nil, err
	}
	return record, nil
}

// log must be called with mu held.
func (s *Session) log() *slog.Logger {
	if s.readerID == 0 {
		return s.logger
	}
	return s.logger.With("session_id", s.id.String())
}
