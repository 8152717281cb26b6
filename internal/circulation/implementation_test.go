// internal/circulation/implementation_test.go
package circulation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/calendar"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
)

var day0 = calendar.Date(2024, time.January, 1)

func daysAfter(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

type fixture struct {
	books   catalog.Service
	members membership.Service
	ledger  circulation.Service
}

func newFixture(t *testing.T, memberOpts ...membership.Option) *fixture {
	t.Helper()

	books := catalog.NewService()
	members := membership.NewService(memberOpts...)

	return &fixture{
		books:   books,
		members: members,
		ledger:  circulation.NewService(books, members),
	}
}

func (f *fixture) givenBook(t *testing.T, title string) int {
	t.Helper()

	book, err := f.books.AddBook(context.Background(), catalog.BookFields{Title: title, Author: "Anon", Price: 12.5})
	require.NoError(t, err)

	return book.ID
}

func (f *fixture) givenReader(t *testing.T) int64 {
	t.Helper()

	reader, err := f.members.Register(context.Background(), membership.ReaderFields{Name: "Reader", Gender: "M"})
	require.NoError(t, err)

	return reader.ID
}

func (f *fixture) givenBorrowed(t *testing.T, readerID int64, bookID int, on time.Time) {
	t.Helper()

	_, err := f.ledger.Borrow(context.Background(), readerID, bookID, on)
	require.NoError(t, err)
}

func (f *fixture) assertAvailable(t *testing.T, bookID int, expected bool) {
	t.Helper()

	book, err := f.books.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, expected, book.Available, "availability of book %d", bookID)
}

func (f *fixture) assertHolds(t *testing.T, readerID int64, expected ...int) {
	t.Helper()

	reader, err := f.members.GetReader(context.Background(), readerID)
	require.NoError(t, err)
	if len(expected) == 0 {
		assert.Empty(t, reader.BorrowedBookIDs)
		return
	}
	assert.Equal(t, expected, reader.BorrowedBookIDs)
}

func failingPayer(t *testing.T) circulation.Payer {
	return circulation.PayerFunc(func(context.Context, float64, int) (float64, error) {
		t.Fatal("payment must not be requested")
		return 0, nil
	})
}

func payments(amounts ...float64) (circulation.Payer, *[]float64) {
	var asked []float64
	return circulation.PayerFunc(func(_ context.Context, fee float64, _ int) (float64, error) {
		asked = append(asked, fee)
		if len(amounts) == 0 {
			return 0, errors.New("no more payments")
		}
		next := amounts[0]
		amounts = amounts[1:]
		return next, nil
	}), &asked
}

func Test_Borrow_Success_WhenAllPreconditionsMet(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Dream of the Red Chamber")
	readerID := f.givenReader(t)

	// act
	record, err := f.ledger.Borrow(ctx, readerID, bookID, daysAfter(0))

	// assert
	require.NoError(t, err)
	assert.Equal(t, readerID, record.ReaderID)
	assert.Equal(t, bookID, record.BookID)
	assert.Equal(t, day0, record.BorrowDate)
	assert.True(t, record.Open())
	f.assertAvailable(t, bookID, false)
	f.assertHolds(t, readerID, bookID)
	assert.Len(t, f.ledger.OpenRecords(ctx, readerID), 1)
}

func Test_Borrow_Error_WhenNoReaderSupplied(t *testing.T) {
	f := newFixture(t)
	bookID := f.givenBook(t, "Journey to the West")

	_, err := f.ledger.Borrow(context.Background(), 0, bookID, day0)

	assert.ErrorIs(t, err, circulation.ErrReaderNotLoggedIn)
	f.assertAvailable(t, bookID, true)
}

func Test_Borrow_Error_WhenReaderUnknown(t *testing.T) {
	f := newFixture(t)
	bookID := f.givenBook(t, "Journey to the West")

	_, err := f.ledger.Borrow(context.Background(), 12345, bookID, day0)

	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func Test_Borrow_Error_WhenAnyLoanIsOverdue(t *testing.T) {
	// arrange
	f := newFixture(t)
	oldBook := f.givenBook(t, "Water Margin")
	newBook := f.givenBook(t, "Romance of the Three Kingdoms")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, oldBook, daysAfter(0))

	// act
	_, err := f.ledger.Borrow(context.Background(), readerID, newBook, daysAfter(31))

	// assert
	assert.ErrorIs(t, err, circulation.ErrHasOverdueBooks)
	f.assertAvailable(t, newBook, true)
	f.assertHolds(t, readerID, oldBook)
}

func Test_Borrow_Success_WhenLoanIsExactlyAtAllowance(t *testing.T) {
	f := newFixture(t)
	oldBook := f.givenBook(t, "Water Margin")
	newBook := f.givenBook(t, "Romance of the Three Kingdoms")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, oldBook, daysAfter(0))

	_, err := f.ledger.Borrow(context.Background(), readerID, newBook, daysAfter(30))

	assert.NoError(t, err)
}

func Test_Borrow_Error_WhenBookDoesNotExist(t *testing.T) {
	f := newFixture(t)
	readerID := f.givenReader(t)

	_, err := f.ledger.Borrow(context.Background(), readerID, 99, day0)

	assert.ErrorIs(t, err, circulation.ErrBookUnavailable)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func Test_Borrow_Error_WhenBookAlreadyLent(t *testing.T) {
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	first := f.givenReader(t)
	second := f.givenReader(t)
	f.givenBorrowed(t, first, bookID, day0)

	_, err := f.ledger.Borrow(context.Background(), second, bookID, day0)

	assert.ErrorIs(t, err, circulation.ErrBookUnavailable)
	f.assertHolds(t, second)
	assert.Len(t, f.ledger.Records(context.Background()), 1)
}

func Test_Borrow_LimitBoundary_OneMoreThanMaxBooksAllowed(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t, membership.WithDefaultMaxBooks(2))
	readerID := f.givenReader(t)
	books := []int{
		f.givenBook(t, "one"),
		f.givenBook(t, "two"),
		f.givenBook(t, "three"),
		f.givenBook(t, "four"),
	}
	f.givenBorrowed(t, readerID, books[0], day0)
	f.givenBorrowed(t, readerID, books[1], day0)

	// act: holding exactly MaxBooks still allows one more
	_, err := f.ledger.Borrow(ctx, readerID, books[2], day0)
	require.NoError(t, err)

	// act: holding MaxBooks+1 is refused
	_, err = f.ledger.Borrow(ctx, readerID, books[3], day0)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBorrowLimitExceeded)
	f.assertAvailable(t, books[3], true)
	f.assertHolds(t, readerID, books[0], books[1], books[2])
}

func Test_HasOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)

	assert.False(t, f.ledger.HasOverdue(ctx, readerID, daysAfter(30)))
	assert.True(t, f.ledger.HasOverdue(ctx, readerID, daysAfter(31)))
	assert.False(t, f.ledger.HasOverdue(ctx, readerID+1, daysAfter(31)))
}

func Test_OverdueFee(t *testing.T) {
	f := newFixture(t)

	open := circulation.Record{BorrowDate: day0}
	assert.Equal(t, 7.5, f.ledger.OverdueFee(open, daysAfter(45)))
	assert.Equal(t, 0.0, f.ledger.OverdueFee(open, daysAfter(30)))
	assert.Equal(t, 0.5, f.ledger.OverdueFee(open, daysAfter(31)))

	closed := circulation.Record{BorrowDate: day0, ReturnDate: daysAfter(40), Returned: true}
	assert.Equal(t, 5.0, f.ledger.OverdueFee(closed, daysAfter(400)), "closed records are charged up to their return date")

	reversed := circulation.Record{BorrowDate: daysAfter(10), ReturnDate: day0, Returned: true}
	assert.Equal(t, 0.0, f.ledger.OverdueFee(reversed, day0))
}

func Test_OverdueFee_CustomPolicy(t *testing.T) {
	books := catalog.NewService()
	members := membership.NewService()
	ledger := circulation.NewService(books, members, circulation.WithPolicy(circulation.Policy{AllowedDays: 14, FeePerDay: 1.25}))

	fee := ledger.OverdueFee(circulation.Record{BorrowDate: day0}, daysAfter(20))

	assert.Equal(t, 7.5, fee)
}

func Test_ReturnBook_Success_WhenFeeRateIsNotExactInBinary(t *testing.T) {
	// arrange
	ctx := context.Background()
	books := catalog.NewService()
	members := membership.NewService()
	ledger := circulation.NewService(books, members, circulation.WithPolicy(circulation.Policy{AllowedDays: 30, FeePerDay: 0.1}))
	book, err := books.AddBook(ctx, catalog.BookFields{Title: "Dream of the Red Chamber"})
	require.NoError(t, err)
	reader, err := members.Register(ctx, membership.ReaderFields{Name: "Lin"})
	require.NoError(t, err)
	_, err = ledger.Borrow(ctx, reader.ID, book.ID, day0)
	require.NoError(t, err)

	ret, err := ledger.StartReturn(ctx, reader.ID, book.ID, daysAfter(33))
	require.NoError(t, err)
	assert.Equal(t, 0.3, ret.Fee())

	// act
	err = ret.Pay(0.3)

	// assert
	require.NoError(t, err)
	record, err := ledger.CompleteReturn(ctx, ret)
	require.NoError(t, err)
	assert.Equal(t, 0.3, ledger.OverdueFee(*record, daysAfter(90)))
}

func Test_DayDifference(t *testing.T) {
	start, _ := calendar.Parse("2024-01-01")
	end, _ := calendar.Parse("2024-01-31")

	assert.Equal(t, 30, circulation.DayDifference(start, end))
	assert.Equal(t, 0, circulation.DayDifference(start, start))
	assert.Equal(t, -30, circulation.DayDifference(end, start))
}

func Test_ReturnBook_Success_WithoutFeeNeverAsksForPayment(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)

	// act
	record, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(10), failingPayer(t))

	// assert
	require.NoError(t, err)
	assert.True(t, record.Returned)
	assert.Equal(t, daysAfter(10), record.ReturnDate)
	f.assertAvailable(t, bookID, true)
	f.assertHolds(t, readerID)
	assert.Empty(t, f.ledger.OpenRecords(ctx, readerID))
}

func Test_ReturnBook_Cancelled_LeavesEverythingUntouched(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)
	payer, asked := payments(0)

	// act
	_, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(45), payer)

	// assert
	assert.ErrorIs(t, err, circulation.ErrReturnCancelled)
	assert.Equal(t, []float64{7.5}, *asked)
	f.assertAvailable(t, bookID, false)
	f.assertHolds(t, readerID, bookID)
	require.Len(t, f.ledger.OpenRecords(ctx, readerID), 1)
}

func Test_ReturnBook_RetriesUntilExactFeeIsPaid(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)
	payer, asked := payments(5, -1, 7.5)

	// act
	record, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(45), payer)

	// assert
	require.NoError(t, err)
	assert.Len(t, *asked, 3)
	assert.True(t, record.Returned)
	f.assertAvailable(t, bookID, true)
	f.assertHolds(t, readerID)
}

func Test_ReturnBook_PayerErrorAbortsWithoutChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)
	payer, _ := payments()

	_, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(45), payer)

	assert.Error(t, err)
	f.assertAvailable(t, bookID, false)
}

func Test_ReturnBook_NilPayerCancelsWhenFeeDue(t *testing.T) {
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)

	_, err := f.ledger.ReturnBook(context.Background(), readerID, bookID, daysAfter(45), nil)

	assert.ErrorIs(t, err, circulation.ErrReturnCancelled)
	f.assertAvailable(t, bookID, false)
}

func Test_ReturnBook_Error_WhenNoOpenRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	other := f.givenReader(t)
	f.givenBorrowed(t, other, bookID, day0)

	_, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(1), nil)
	assert.ErrorIs(t, err, circulation.ErrRecordNotFound)

	_, err = f.ledger.ReturnBook(ctx, 0, bookID, daysAfter(1), nil)
	assert.ErrorIs(t, err, circulation.ErrReaderNotLoggedIn)
}

func Test_ReturnBook_SameBookCanBeBorrowedAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)
	_, err := f.ledger.ReturnBook(ctx, readerID, bookID, daysAfter(2), nil)
	require.NoError(t, err)

	f.givenBorrowed(t, readerID, bookID, daysAfter(3))

	records := f.ledger.Records(ctx)
	require.Len(t, records, 2)
	assert.True(t, records[0].Returned)
	assert.True(t, records[1].Open())
}

func Test_Return_StateMachine(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)

	ret, err := f.ledger.StartReturn(ctx, readerID, bookID, daysAfter(40))
	require.NoError(t, err)
	assert.Equal(t, circulation.AwaitingPayment, ret.State())
	assert.Equal(t, 5.0, ret.Fee())

	// completing before payment is refused
	_, err = f.ledger.CompleteReturn(ctx, ret)
	assert.ErrorIs(t, err, circulation.ErrInvalidTransition)

	// a wrong amount keeps the return waiting
	assert.ErrorIs(t, ret.Pay(4.5), circulation.ErrPaymentMismatch)
	assert.Equal(t, circulation.AwaitingPayment, ret.State())

	// the exact amount settles
	require.NoError(t, ret.Pay(5))
	assert.Equal(t, circulation.Settled, ret.State())
	assert.ErrorIs(t, ret.Pay(5), circulation.ErrInvalidTransition)
	assert.Equal(t, 2, ret.Attempts())

	// act
	record, err := f.ledger.CompleteReturn(ctx, ret)

	// assert
	require.NoError(t, err)
	assert.True(t, record.Returned)
	assert.Equal(t, circulation.Completed, ret.State())
	assert.Error(t, ret.Cancel())

	_, err = f.ledger.CompleteReturn(ctx, ret)
	assert.ErrorIs(t, err, circulation.ErrInvalidTransition)
}

func Test_Return_CancelledCannotComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.givenBook(t, "Water Margin")
	readerID := f.givenReader(t)
	f.givenBorrowed(t, readerID, bookID, day0)

	ret, err := f.ledger.StartReturn(ctx, readerID, bookID, daysAfter(1))
	require.NoError(t, err)
	assert.Equal(t, circulation.Settled, ret.State())
	require.NoError(t, ret.Cancel())

	_, err = f.ledger.CompleteReturn(ctx, ret)

	assert.ErrorIs(t, err, circulation.ErrReturnCancelled)
	f.assertAvailable(t, bookID, false)
}

func Test_Restore_ReplacesRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.ledger.Restore(ctx, []circulation.Record{
		{ReaderID: 7, BookID: 1, BorrowDate: day0},
		{ReaderID: 7, BookID: 2, BorrowDate: day0, ReturnDate: daysAfter(3), Returned: true},
	})

	assert.Len(t, f.ledger.Records(ctx), 2)
	assert.Len(t, f.ledger.OpenRecords(ctx, 7), 1)
	assert.True(t, f.ledger.HasOverdue(ctx, 7, daysAfter(31)))
}

// flakyMembership fails RecordBorrow to exercise compensation.
type flakyMembership struct {
	membership.Service
}

func (flakyMembership) RecordBorrow(context.Context, int64, int) error {
	return errors.New("disk full")
}

func Test_Borrow_CompensatesAvailability_WhenRecordingFails(t *testing.T) {
	// arrange
	ctx := context.Background()
	books := catalog.NewService()
	members := membership.NewService()
	ledger := circulation.NewService(books, flakyMembership{members})
	book, err := books.AddBook(ctx, catalog.BookFields{Title: "Water Margin"})
	require.NoError(t, err)
	reader, err := members.Register(ctx, membership.ReaderFields{Name: "R"})
	require.NoError(t, err)

	// act
	_, err = ledger.Borrow(ctx, reader.ID, book.ID, day0)

	// assert
	assert.Error(t, err)
	stored, err := books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)
	assert.Empty(t, ledger.Records(ctx))
}
