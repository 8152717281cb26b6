// internal/cli/menu.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
	"librarydesk/internal/session"
)

const mainMenu = `
=== Library Desk ===
1. Add book
2. List books
3. Register reader
4. List readers
5. Login
6. Borrow
7. Return
8. Save all data
9. Logout
10. Search books
0. Exit
`

const searchMenu = `
=== Search Books ===
1. By title
2. By author
0. Back
`

// Menu is the interactive console of the desk.
type Menu struct {
	app *app
	in  *prompter
	out io.Writer
}

// NewMenu returns a menu reading choices from in and writing to out.
func NewMenu(a *app, in io.Reader, out io.Writer) *Menu {
	return &Menu{app: a, in: newPrompter(in, out), out: out}
}

// Run shows the menu until the operator exits or input ends. Failed
// operations are reported and the menu continues.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprint(m.out, mainMenu)
		choice, err := m.in.Int("Choose an option: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(m.out, "Invalid option, please retry")
			continue
		}
		if choice == 0 {
			fmt.Fprintln(m.out, "Goodbye")
			return nil
		}

		if err := m.Handle(ctx, choice); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(m.out, describe(err))
		}
	}
}

// Handle runs one menu option.
func (m *Menu) Handle(ctx context.Context, choice int) error {
	switch choice {
	case 1:
		return m.handleAddBook(ctx)
	case 2:
		return m.handleListBooks(ctx)
	case 3:
		return m.handleRegisterReader(ctx)
	case 4:
		return m.handleListReaders(ctx)
	case 5:
		return m.handleLogin(ctx)
	case 6:
		return m.handleBorrow(ctx)
	case 7:
		return m.handleReturn(ctx)
	case 8:
		return m.handleSave(ctx)
	case 9:
		return m.handleLogout(ctx)
	case 10:
		return m.handleSearch(ctx)
	default:
		fmt.Fprintln(m.out, "Invalid option, please retry")
		return nil
	}
}

func (m *Menu) handleAddBook(ctx context.Context) error {
	var (
		fields catalog.BookFields
		err    error
	)
	if fields.Title, err = m.in.Line("Title: "); err != nil {
		return err
	}
	if fields.Author, err = m.in.Line("Author: "); err != nil {
		return err
	}
	if fields.Category, err = m.in.Line("Category: "); err != nil {
		return err
	}
	if fields.Publisher, err = m.in.Line("Publisher: "); err != nil {
		return err
	}
	if fields.PublicationDate, err = m.in.Date("Publication date (YYYY-MM-DD): "); err != nil {
		return err
	}
	if fields.Price, err = m.in.Price("Price: "); err != nil {
		return err
	}

	book, err := m.app.library.Catalog().AddBook(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Book %d added\n", book.ID)
	return nil
}

func (m *Menu) handleListBooks(ctx context.Context) error {
	books := m.app.library.Catalog().Books(ctx)
	if len(books) == 0 {
		fmt.Fprintln(m.out, "No books yet")
	}
	for _, b := range books {
		printBook(m.out, b)
	}
	return nil
}

func (m *Menu) handleRegisterReader(ctx context.Context) error {
	var (
		fields membership.ReaderFields
		err    error
	)
	if fields.Name, err = m.in.Line("Name: "); err != nil {
		return err
	}
	if fields.Gender, err = m.in.Line("Gender: "); err != nil {
		return err
	}

	reader, err := m.app.library.Membership().Register(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Registered, reader ID: %d\n", reader.ID)
	return nil
}

func (m *Menu) handleListReaders(ctx context.Context) error {
	readers := m.app.library.Membership().Readers(ctx)
	if len(readers) == 0 {
		fmt.Fprintln(m.out, "No readers yet")
	}
	for _, r := range readers {
		printReader(m.out, r)
	}
	return nil
}

func (m *Menu) handleLogin(ctx context.Context) error {
	if current, err := m.app.session.Current(ctx); err == nil {
		fmt.Fprintf(m.out, "Already logged in as %s\n", current.Name)
		return nil
	}

	id, err := m.in.Int64("Reader ID: ")
	if err != nil {
		return err
	}
	reader, err := m.app.session.Login(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Welcome, %s!\n", reader.Name)
	return nil
}

func (m *Menu) handleBorrow(ctx context.Context) error {
	reader, err := m.app.session.Current(ctx)
	if err != nil {
		return circulation.ErrReaderNotLoggedIn
	}
	// Overdue loans are refused before asking for a book.
	if m.app.library.Ledger().HasOverdue(ctx, reader.ID, m.app.clock.Today()) {
		return circulation.ErrHasOverdueBooks
	}

	bookID, err := m.in.Int("Book ID: ")
	if err != nil {
		return err
	}
	if _, err := m.app.session.Borrow(ctx, bookID); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Borrowed")
	return nil
}

func (m *Menu) handleReturn(ctx context.Context) error {
	if _, err := m.app.session.Current(ctx); err != nil {
		return circulation.ErrReaderNotLoggedIn
	}

	bookID, err := m.in.Int("Book ID to return: ")
	if err != nil {
		return err
	}
	record, err := m.app.session.Return(ctx, bookID, &consolePayer{in: m.in, out: m.out})
	if err != nil {
		return err
	}
	if fee := m.app.library.Ledger().OverdueFee(*record, record.ReturnDate); fee > 0 {
		fmt.Fprintln(m.out, "Payment accepted")
	}
	fmt.Fprintln(m.out, "Returned")
	return nil
}

func (m *Menu) handleSave(ctx context.Context) error {
	if err := m.app.save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Data saved")
	return nil
}

func (m *Menu) handleLogout(ctx context.Context) error {
	reader, err := m.app.session.Logout(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "%s logged out\n", reader.Name)
	return nil
}

func (m *Menu) handleSearch(ctx context.Context) error {
	fmt.Fprint(m.out, searchMenu)
	choice, err := m.in.Int("Choose: ")
	if err != nil {
		return err
	}

	var books []*catalog.Book
	switch choice {
	case 1:
		title, err := m.in.Line("Title: ")
		if err != nil {
			return err
		}
		books = m.app.library.Catalog().FindByTitle(ctx, title)
	case 2:
		author, err := m.in.Line("Author: ")
		if err != nil {
			return err
		}
		books = m.app.library.Catalog().FindByAuthor(ctx, author)
	default:
		return nil
	}

	if len(books) == 0 {
		fmt.Fprintln(m.out, "No matching books")
	}
	for _, b := range books {
		printBook(m.out, b)
	}
	return nil
}

// consolePayer asks the operator for the overdue fee.
type consolePayer struct {
	in  *prompter
	out io.Writer
}

func (p *consolePayer) RequestPayment(_ context.Context, fee float64, attempt int) (float64, error) {
	if attempt == 1 {
		fmt.Fprintf(p.out, "Overdue fee due: %s\n", strconv.FormatFloat(fee, 'f', -1, 64))
	} else {
		fmt.Fprintln(p.out, "Amount does not match the fee")
	}
	return p.in.Amount("Pay (amount, 0 to cancel): ")
}

// describe turns an error into the line shown to the operator.
func describe(err error) string {
	switch {
	case errors.Is(err, circulation.ErrReaderNotLoggedIn):
		return "Please log in first"
	case errors.Is(err, circulation.ErrHasOverdueBooks):
		return "You have overdue books; return them before borrowing"
	case errors.Is(err, circulation.ErrBookUnavailable):
		return "Book is not available"
	case errors.Is(err, circulation.ErrBorrowLimitExceeded):
		return "Borrow limit reached"
	case errors.Is(err, circulation.ErrRecordNotFound):
		return "No open borrow record for this book"
	case errors.Is(err, circulation.ErrReturnCancelled):
		return "Return cancelled"
	case errors.Is(err, session.ErrAlreadyLoggedIn):
		return "A reader is already logged in"
	case errors.Is(err, session.ErrNotLoggedIn):
		return "Not logged in"
	case errors.Is(err, session.ErrReaderNotFound):
		return "Reader not found"
	case errors.Is(err, errInvalidNumber):
		return "Invalid number"
	default:
		return "Error: " + err.Error()
	}
}

func printBook(w io.Writer, b *catalog.Book) {
	available := "no"
	if b.Available {
		available = "yes"
	}
	fmt.Fprintf(w, "ID: %d, Title: %s, Author: %s, Available: %s\n", b.ID, b.Title, b.Author, available)
}

func printReader(w io.Writer, r *membership.Reader) {
	fmt.Fprintf(w, "ID: %d, Name: %s, Gender: %s\n", r.ID, r.Name, r.Gender)
}
