// internal/catalog/service.go
package catalog

import "context"

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, fields BookFields) (*Book, error)
	GetBook(ctx context.Context, id int) (*Book, error)
	FindByTitle(ctx context.Context, title string) []*Book
	FindByAuthor(ctx context.Context, author string) []*Book
	SetAvailability(ctx context.Context, id int, available bool) error
	Books(ctx context.Context) []*Book
	Restore(ctx context.Context, books []Book)
	NextID() int
	ReserveIDsBelow(next int)
}
