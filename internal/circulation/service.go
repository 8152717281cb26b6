// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/membership"
)

// Service defines the interface for the circulation ledger.
type Service interface {
	Borrow(ctx context.Context, readerID int64, bookID int, today time.Time) (*Record, error)
	StartReturn(ctx context.Context, readerID int64, bookID int, today time.Time) (*Return, error)
	CompleteReturn(ctx context.Context, ret *Return) (*Record, error)
	ReturnBook(ctx context.Context, readerID int64, bookID int, today time.Time, payer Payer) (*Record, error)
	HasOverdue(ctx context.Context, readerID int64, asOf time.Time) bool
	OverdueFee(record Record, asOf time.Time) float64
	Records(ctx context.Context) []Record
	OpenRecords(ctx context.Context, readerID int64) []Record
	Restore(ctx context.Context, records []Record)
	Policy() Policy
}

// Catalog is the part of the catalog the ledger needs.
type Catalog interface {
	GetBook(ctx context.Context, id int) (*catalog.Book, error)
	SetAvailability(ctx context.Context, id int, available bool) error
}

// Membership is the part of membership the ledger needs.
type Membership interface {
	GetReader(ctx context.Context, id int64) (*membership.Reader, error)
	CanBorrow(reader *membership.Reader) bool
	RecordBorrow(ctx context.Context, readerID int64, bookID int) error
	RecordReturn(ctx context.Context, readerID int64, bookID int) error
}
