// internal/store/codec.go
package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"librarydesk/internal/calendar"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
)

const sep = "|"

var fieldEscaper = strings.NewReplacer(sep, "/", "\r", " ", "\n", " ")

// legacyDateLayouts are publication date spellings found in older files.
var legacyDateLayouts = []string{"2006/1/2", "2006-1-2", "2006.1.2"}

// errFieldDropped marks a line that decoded with one unreadable field left
// empty. Lenient loads keep such lines.
var errFieldDropped = errors.New("unreadable field dropped")

// field makes free text safe to store between separators.
func field(s string) string {
	return fieldEscaper.Replace(s)
}

func encodeBook(b catalog.Book) string {
	return strings.Join([]string{
		strconv.Itoa(b.ID),
		field(b.Title),
		field(b.Author),
		field(b.Category),
		field(b.Publisher),
		calendar.Format(b.PublicationDate),
		strconv.FormatFloat(b.Price, 'f', -1, 64),
		encodeBool(b.Available),
	}, sep) + sep
}

func decodeBook(line string) (catalog.Book, error) {
	parts := splitLine(line, 8)
	if len(parts) != 8 {
		return catalog.Book{}, fmt.Errorf("expected 8 fields, got %d", len(parts))
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil || id <= 0 {
		return catalog.Book{}, fmt.Errorf("invalid book id %q", parts[0])
	}
	published, dateErr := parsePublished(parts[5])
	price, err := strconv.ParseFloat(parts[6], 64)
	if err != nil || price < 0 {
		return catalog.Book{}, fmt.Errorf("invalid price %q", parts[6])
	}
	available, err := decodeBool(parts[7])
	if err != nil {
		return catalog.Book{}, err
	}

	return catalog.Book{
		ID:              id,
		Title:           parts[1],
		Author:          parts[2],
		Category:        parts[3],
		Publisher:       parts[4],
		PublicationDate: published,
		Price:           price,
		Available:       available,
	}, dateErr
}

// parsePublished reads a publication date in the current or a legacy
// spelling. Anything else yields the zero date and errFieldDropped.
func parsePublished(s string) (time.Time, error) {
	if d, err := calendar.Parse(s); err == nil {
		return d, nil
	}
	for _, layout := range legacyDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return calendar.DateOf(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: publication date %q", errFieldDropped, s)
}

func encodeReader(r membership.Reader) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.ID, 10))
	b.WriteString(sep)
	b.WriteString(field(r.Name))
	b.WriteString(sep)
	b.WriteString(field(r.Gender))
	for _, id := range r.BorrowedBookIDs {
		b.WriteString(sep)
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

func decodeReader(line string) (membership.Reader, error) {
	parts := splitLine(line, 3)
	if len(parts) < 3 {
		return membership.Reader{}, fmt.Errorf("expected at least 3 fields, got %d", len(parts))
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return membership.Reader{}, fmt.Errorf("invalid reader id %q", parts[0])
	}

	held := make([]int, 0, len(parts)-3)
	for _, p := range parts[3:] {
		bookID, err := strconv.Atoi(p)
		if err != nil || bookID <= 0 {
			return membership.Reader{}, fmt.Errorf("invalid borrowed book id %q", p)
		}
		held = append(held, bookID)
	}

	return membership.Reader{
		ID:              id,
		Name:            parts[1],
		Gender:          parts[2],
		BorrowedBookIDs: held,
	}, nil
}

func encodeRecord(r circulation.Record) string {
	return strings.Join([]string{
		strconv.FormatInt(r.ReaderID, 10),
		strconv.Itoa(r.BookID),
		calendar.Format(r.BorrowDate),
		calendar.Format(r.ReturnDate),
		encodeBool(r.Returned),
	}, sep)
}

func decodeRecord(line string) (circulation.Record, error) {
	parts := strings.Split(line, sep)
	if len(parts) != 5 {
		return circulation.Record{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	readerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return circulation.Record{}, fmt.Errorf("invalid reader id %q", parts[0])
	}
	bookID, err := strconv.Atoi(parts[1])
	if err != nil {
		return circulation.Record{}, fmt.Errorf("invalid book id %q", parts[1])
	}
	if parts[2] == "" {
		return circulation.Record{}, errors.New("missing borrow date")
	}
	borrowed, err := calendar.Parse(parts[2])
	if err != nil {
		return circulation.Record{}, err
	}
	returnedOn, err := calendar.Parse(parts[3])
	if err != nil {
		return circulation.Record{}, err
	}
	returned, err := decodeBool(parts[4])
	if err != nil {
		return circulation.Record{}, err
	}

	return circulation.Record{
		ReaderID:   readerID,
		BookID:     bookID,
		BorrowDate: borrowed,
		ReturnDate: returnedOn,
		Returned:   returned,
	}, nil
}

// splitLine splits a line into fields, dropping the empty field left by a
// trailing separator once at least minFields are present.
func splitLine(line string, minFields int) []string {
	parts := strings.Split(line, sep)
	if n := len(parts); n > minFields && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func decodeBool(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid flag %q, want 1 or 0", s)
	}
}
