// internal/integrity/checks.go
package integrity

import (
	"fmt"
	"slices"

	"librarydesk/internal/calendar"
	"librarydesk/internal/library"
)

const (
	BookAvailability   = "book-availability"
	SingleOpenRecord   = "single-open-record"
	ReaderHoldings     = "reader-holdings"
	DanglingReferences = "dangling-references"
	Chronology         = "chronology"
	IDCounters         = "id-counters"
)

// DefaultChecks returns the invariants every consistent library satisfies.
func DefaultChecks() []Check {
	return []Check{
		{
			Name:       BookAvailability,
			Hypothesis: "A book is unavailable exactly when an open borrow record references it",
			Verify:     verifyBookAvailability,
		},
		{
			Name:       SingleOpenRecord,
			Hypothesis: "No book has more than one open borrow record",
			Verify:     verifySingleOpenRecord,
		},
		{
			Name:       ReaderHoldings,
			Hypothesis: "Each reader holds exactly the books of their open records",
			Verify:     verifyReaderHoldings,
		},
		{
			Name:       DanglingReferences,
			Hypothesis: "Records and holdings only reference existing readers and books",
			Verify:     verifyReferences,
		},
		{
			Name:       Chronology,
			Hypothesis: "Closed records were returned on or after the day they were borrowed",
			Verify:     verifyChronology,
		},
		{
			Name:       IDCounters,
			Hypothesis: "IDs are unique and below the next ID of their sequence",
			Verify:     verifyIDCounters,
		},
	}
}

func openCounts(snap library.Snapshot) map[int]int {
	counts := make(map[int]int)
	for _, r := range snap.Records {
		if r.Open() {
			counts[r.BookID]++
		}
	}
	return counts
}

func verifyBookAvailability(snap library.Snapshot) []Violation {
	open := openCounts(snap)

	var violations []Violation
	for _, b := range snap.Books {
		switch {
		case b.Available && open[b.ID] > 0:
			violations = append(violations, Violation{
				Check:   BookAvailability,
				Subject: fmt.Sprintf("book %d", b.ID),
				Message: "marked available but lent out",
			})
		case !b.Available && open[b.ID] == 0:
			violations = append(violations, Violation{
				Check:   BookAvailability,
				Subject: fmt.Sprintf("book %d", b.ID),
				Message: "marked unavailable without an open record",
			})
		}
	}
	return violations
}

func verifySingleOpenRecord(snap library.Snapshot) []Violation {
	open := openCounts(snap)

	ids := make([]int, 0, len(open))
	for id, n := range open {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var violations []Violation
	for _, id := range ids {
		violations = append(violations, Violation{
			Check:   SingleOpenRecord,
			Subject: fmt.Sprintf("book %d", id),
			Message: fmt.Sprintf("%d open records", open[id]),
		})
	}
	return violations
}

func verifyReaderHoldings(snap library.Snapshot) []Violation {
	lent := make(map[int64][]int)
	for _, r := range snap.Records {
		if r.Open() {
			lent[r.ReaderID] = append(lent[r.ReaderID], r.BookID)
		}
	}

	var violations []Violation
	for _, reader := range snap.Readers {
		held := slices.Clone(reader.BorrowedBookIDs)
		slices.Sort(held)
		expected := lent[reader.ID]
		slices.Sort(expected)

		if !slices.Equal(held, expected) {
			violations = append(violations, Violation{
				Check:   ReaderHoldings,
				Subject: fmt.Sprintf("reader %d", reader.ID),
				Message: fmt.Sprintf("holds %v, open records for %v", held, expected),
			})
		}
	}
	return violations
}

func verifyReferences(snap library.Snapshot) []Violation {
	books := make(map[int]bool, len(snap.Books))
	for _, b := range snap.Books {
		books[b.ID] = true
	}
	readers := make(map[int64]bool, len(snap.Readers))
	for _, r := range snap.Readers {
		readers[r.ID] = true
	}

	var violations []Violation
	for i, r := range snap.Records {
		if !readers[r.ReaderID] {
			violations = append(violations, Violation{
				Check:   DanglingReferences,
				Subject: fmt.Sprintf("record %d", i+1),
				Message: fmt.Sprintf("unknown reader %d", r.ReaderID),
			})
		}
		if !books[r.BookID] {
			violations = append(violations, Violation{
				Check:   DanglingReferences,
				Subject: fmt.Sprintf("record %d", i+1),
				Message: fmt.Sprintf("unknown book %d", r.BookID),
			})
		}
	}
	for _, reader := range snap.Readers {
		for _, id := range reader.BorrowedBookIDs {
			if !books[id] {
				violations = append(violations, Violation{
					Check:   DanglingReferences,
					Subject: fmt.Sprintf("reader %d", reader.ID),
					Message: fmt.Sprintf("holds unknown book %d", id),
				})
			}
		}
	}
	return violations
}

func verifyChronology(snap library.Snapshot) []Violation {
	var violations []Violation
	for i, r := range snap.Records {
		if !r.Returned {
			continue
		}
		switch {
		case r.ReturnDate.IsZero():
			violations = append(violations, Violation{
				Check:   Chronology,
				Subject: fmt.Sprintf("record %d", i+1),
				Message: "returned without a return date",
			})
		case r.ReturnDate.Before(r.BorrowDate):
			violations = append(violations, Violation{
				Check:   Chronology,
				Subject: fmt.Sprintf("record %d", i+1),
				Message: fmt.Sprintf("returned %s before borrowed %s",
					calendar.Format(r.ReturnDate), calendar.Format(r.BorrowDate)),
			})
		}
	}
	return violations
}

func verifyIDCounters(snap library.Snapshot) []Violation {
	var violations []Violation

	seenBooks := make(map[int]bool, len(snap.Books))
	for _, b := range snap.Books {
		if seenBooks[b.ID] {
			violations = append(violations, Violation{Check: IDCounters, Subject: fmt.Sprintf("book %d", b.ID), Message: "duplicate ID"})
		}
		seenBooks[b.ID] = true
		if b.ID >= snap.NextBookID {
			violations = append(violations, Violation{
				Check:   IDCounters,
				Subject: fmt.Sprintf("book %d", b.ID),
				Message: fmt.Sprintf("not below next book ID %d", snap.NextBookID),
			})
		}
	}

	seenReaders := make(map[int64]bool, len(snap.Readers))
	for _, r := range snap.Readers {
		if seenReaders[r.ID] {
			violations = append(violations, Violation{Check: IDCounters, Subject: fmt.Sprintf("reader %d", r.ID), Message: "duplicate ID"})
		}
		seenReaders[r.ID] = true
		if r.ID >= snap.NextReaderID {
			violations = append(violations, Violation{
				Check:   IDCounters,
				Subject: fmt.Sprintf("reader %d", r.ID),
				Message: fmt.Sprintf("not below next reader ID %d", snap.NextReaderID),
			})
		}
	}

	return violations
}
