// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"librarydesk/internal/sequence"
)

// service implements the Service interface on top of an in-memory arena
// keyed by book ID.
type service struct {
	mu     sync.RWMutex
	books  map[int]*Book
	ids    *sequence.Allocator[int]
	logger *slog.Logger
}

// Option configures the catalog service.
type Option func(*service)

// WithLogger sets the logger used for catalog events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// NewService creates a new, empty catalog.
func NewService(opts ...Option) Service {
	s := &service{
		books:  make(map[int]*Book),
		ids:    sequence.New(FirstBookID),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddBook registers a new book under the next free ID. New books are
// always available.
func (s *service) AddBook(ctx context.Context, fields BookFields) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book := &Book{
		ID:              s.ids.Next(),
		Title:           fields.Title,
		Author:          fields.Author,
		Category:        fields.Category,
		Publisher:       fields.Publisher,
		PublicationDate: fields.PublicationDate,
		Price:           fields.Price,
		Available:       true,
	}
	s.books[book.ID] = book

	s.logger.InfoContext(ctx, "book added", "book_id", book.ID, "title", book.Title)

	copied := *book
	return &copied, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(_ context.Context, id int) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
	}

	copied := *book
	return &copied, nil
}

// FindByTitle returns every book whose title matches exactly.
func (s *service) FindByTitle(_ context.Context, title string) []*Book {
	return s.filter(func(b *Book) bool { return b.Title == title })
}

// FindByAuthor returns every book whose author matches exactly.
func (s *service) FindByAuthor(_ context.Context, author string) []*Book {
	return s.filter(func(b *Book) bool { return b.Author == author })
}

// SetAvailability flips the availability flag of a book.
func (s *service) SetAvailability(_ context.Context, id int, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
	}
	book.Available = available
	return nil
}

// Books lists the whole catalog ordered by ID.
func (s *service) Books(_ context.Context) []*Book {
	return s.filter(func(*Book) bool { return true })
}

// Restore replaces the catalog contents with previously persisted books and
// moves the ID sequence past every restored ID.
func (s *service) Restore(ctx context.Context, books []Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books = make(map[int]*Book, len(books))
	for i := range books {
		book := books[i]
		s.books[book.ID] = &book
		s.ids.Observe(book.ID)
	}

	s.logger.DebugContext(ctx, "catalog restored", "books", len(books), "next_id", s.ids.Peek())
}

// NextID returns the ID the next added book will receive.
func (s *service) NextID() int {
	return s.ids.Peek()
}

// ReserveIDsBelow makes sure no book added later gets an ID below next.
func (s *service) ReserveIDsBelow(next int) {
	s.ids.Observe(next - 1)
}

func (s *service) filter(match func(*Book) bool) []*Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var books []*Book
	for _, book := range s.books {
		if match(book) {
			copied := *book
			books = append(books, &copied)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}
