// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"librarydesk/internal/sequence"
)

// service implements the Service interface.
type service struct {
	mu              sync.RWMutex
	readers         map[int64]*Reader
	ids             *sequence.Allocator[int64]
	defaultMaxBooks int
	logger          *slog.Logger
}

// Option configures the membership service.
type Option func(*service)

// WithLogger sets the logger used for membership events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithDefaultMaxBooks overrides the allowance given to new readers.
func WithDefaultMaxBooks(n int) Option {
	return func(s *service) {
		s.defaultMaxBooks = n
	}
}

// NewService creates a new membership service instance.
func NewService(opts ...Option) Service {
	s := &service{
		readers:         make(map[int64]*Reader),
		ids:             sequence.New(FirstReaderID),
		defaultMaxBooks: DefaultMaxBooks,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new reader with an empty borrowed set.
func (s *service) Register(ctx context.Context, fields ReaderFields) (*Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader := &Reader{
		ID:              s.ids.Next(),
		Name:            fields.Name,
		Gender:          fields.Gender,
		MaxBooks:        s.defaultMaxBooks,
		BorrowedBookIDs: []int{},
	}
	s.readers[reader.ID] = reader

	s.logger.InfoContext(ctx, "reader registered", "reader_id", reader.ID, "name", reader.Name)

	return reader.clone(), nil
}

// GetReader retrieves a reader by their ID.
func (s *service) GetReader(_ context.Context, id int64) (*Reader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reader, ok := s.readers[id]
	if !ok {
		return nil, fmt.Errorf("reader with ID %d: %w", id, ErrNotFound)
	}
	return reader.clone(), nil
}

// CanBorrow applies the borrow-limit policy.
func (s *service) CanBorrow(reader *Reader) bool {
	return CanBorrow(reader)
}

// RecordBorrow adds a book to the reader's borrowed set.
func (s *service) RecordBorrow(_ context.Context, readerID int64, bookID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, ok := s.readers[readerID]
	if !ok {
		return fmt.Errorf("reader with ID %d: %w", readerID, ErrNotFound)
	}
	if !reader.Holds(bookID) {
		reader.BorrowedBookIDs = append(reader.BorrowedBookIDs, bookID)
	}
	return nil
}

// RecordReturn removes a book from the reader's borrowed set.
func (s *service) RecordReturn(_ context.Context, readerID int64, bookID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, ok := s.readers[readerID]
	if !ok {
		return fmt.Errorf("reader with ID %d: %w", readerID, ErrNotFound)
	}
	reader.BorrowedBookIDs = slices.DeleteFunc(reader.BorrowedBookIDs, func(id int) bool { return id == bookID })
	return nil
}

// Readers lists every registered reader ordered by ID.
func (s *service) Readers(_ context.Context) []*Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readers := make([]*Reader, 0, len(s.readers))
	for _, reader := range s.readers {
		readers = append(readers, reader.clone())
	}
	sort.Slice(readers, func(i, j int) bool { return readers[i].ID < readers[j].ID })
	return readers
}

// Restore replaces all readers with previously persisted ones and moves the
// ID sequence past every restored ID. Readers restored without an allowance
// get the default one.
func (s *service) Restore(ctx context.Context, readers []Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readers = make(map[int64]*Reader, len(readers))
	for i := range readers {
		reader := readers[i].clone()
		if reader.MaxBooks == 0 {
			reader.MaxBooks = s.defaultMaxBooks
		}
		if reader.BorrowedBookIDs == nil {
			reader.BorrowedBookIDs = []int{}
		}
		s.readers[reader.ID] = reader
		s.ids.Observe(reader.ID)
	}

	s.logger.DebugContext(ctx, "membership restored", "readers", len(readers), "next_id", s.ids.Peek())
}

// NextID returns the ID the next registered reader will receive.
func (s *service) NextID() int64 {
	return s.ids.Peek()
}

// ReserveIDsBelow makes sure no reader registered later gets an ID below
// next.
func (s *service) ReserveIDsBelow(next int64) {
	s.ids.Observe(next - 1)
}
