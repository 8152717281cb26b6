// internal/membership/service.go
package membership

import "context"

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, fields ReaderFields) (*Reader, error)
	GetReader(ctx context.Context, id int64) (*Reader, error)
	CanBorrow(reader *Reader) bool
	RecordBorrow(ctx context.Context, readerID int64, bookID int) error
	RecordReturn(ctx context.Context, readerID int64, bookID int) error
	Readers(ctx context.Context) []*Reader
	Restore(ctx context.Context, readers []Reader)
	NextID() int64
	ReserveIDsBelow(next int64)
}
