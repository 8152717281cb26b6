// internal/membership/domain.go
package membership

import (
	"errors"
	"slices"
)

const (
	// FirstReaderID seeds the reader sequence well above the book ID range.
	FirstReaderID int64 = 2404241001

	// DefaultMaxBooks is the borrow allowance of a newly registered reader.
	DefaultMaxBooks = 10
)

// ErrNotFound is returned when no reader has the requested ID.
var ErrNotFound = errors.New("reader not found")

// Reader represents a registered library reader.
type Reader struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	MaxBooks        int    `json:"max_books"`
	BorrowedBookIDs []int  `json:"borrowed_book_ids"`
}

// ReaderFields carries the user-supplied attributes of a new reader.
type ReaderFields struct {
	Name   string
	Gender string
}

// Holds reports whether the reader currently has the given book.
func (r *Reader) Holds(bookID int) bool {
	return slices.Contains(r.BorrowedBookIDs, bookID)
}

// CanBorrow reports whether the reader may take out another book. A reader
// holding exactly MaxBooks books is still allowed one more.
func CanBorrow(r *Reader) bool {
	return len(r.BorrowedBookIDs) <= r.MaxBooks
}

func (r *Reader) clone() *Reader {
	copied := *r
	copied.BorrowedBookIDs = slices.Clone(r.BorrowedBookIDs)
	return &copied
}
