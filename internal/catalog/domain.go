// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"
)

// FirstBookID is the first ID handed out on an empty catalog.
const FirstBookID = 1

// ErrNotFound is returned when no book has the requested ID.
var ErrNotFound = errors.New("book not found")

// Book represents a single physical book held by the library.
type Book struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Category        string    `json:"category"`
	Publisher       string    `json:"publisher"`
	PublicationDate time.Time `json:"publication_date"`
	Price           float64   `json:"price"`
	Available       bool      `json:"available"`
}

// BookFields carries the user-supplied attributes of a new book.
type BookFields struct {
	Title           string
	Author          string
	Category        string
	Publisher       string
	PublicationDate time.Time
	Price           float64
}
