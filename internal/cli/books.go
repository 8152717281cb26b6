// internal/cli/books.go
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"librarydesk/internal/calendar"
	"librarydesk/internal/catalog"
)

func newBooksCommand(appFn func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List, add and search books",
	}
	cmd.AddCommand(
		newBooksListCommand(appFn),
		newBooksAddCommand(appFn),
		newBooksSearchCommand(appFn),
	)
	return cmd
}

func newBooksListCommand(appFn func() *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books := appFn().library.Catalog().Books(cmd.Context())
			return writeBooks(cmd.OutOrStdout(), books, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func newBooksAddCommand(appFn func() *app) *cobra.Command {
	var (
		fields    catalog.BookFields
		published string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book and save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if fields.PublicationDate, err = calendar.Parse(published); err != nil {
				return err
			}
			if fields.Price < 0 {
				return errors.New("price cannot be negative")
			}

			a := appFn()
			book, err := a.library.Catalog().AddBook(cmd.Context(), fields)
			if err != nil {
				return err
			}
			if err := a.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Book %d added\n", book.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fields.Title, "title", "", "book title")
	flags.StringVar(&fields.Author, "author", "", "book author")
	flags.StringVar(&fields.Category, "category", "", "category code")
	flags.StringVar(&fields.Publisher, "publisher", "", "publisher")
	flags.StringVar(&published, "published", "", "publication date, YYYY-MM-DD")
	flags.Float64Var(&fields.Price, "price", 0, "price")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newBooksSearchCommand(appFn func() *app) *cobra.Command {
	var (
		title, author string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find books by exact title or author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books := appFn().library.Catalog()
			var found []*catalog.Book
			if cmd.Flags().Changed("title") {
				found = books.FindByTitle(cmd.Context(), title)
			} else {
				found = books.FindByAuthor(cmd.Context(), author)
			}
			if len(found) == 0 && !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching books")
				return nil
			}
			return writeBooks(cmd.OutOrStdout(), found, asJSON)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "exact title")
	flags.StringVar(&author, "author", "", "exact author")
	flags.BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.MarkFlagsOneRequired("title", "author")
	cmd.MarkFlagsMutuallyExclusive("title", "author")

	return cmd
}

func writeBooks(w io.Writer, books []*catalog.Book, asJSON bool) error {
	if asJSON {
		if books == nil {
			books = []*catalog.Book{}
		}
		return json.NewEncoder(w).Encode(books)
	}
	for _, b := range books {
		printBook(w, b)
	}
	return nil
}
