// internal/store/store.go

// Package store persists a library snapshot as three pipe-delimited text
// files: books, readers and borrow records.
package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/catalog"
	"librarydesk/internal/library"
	"librarydesk/internal/membership"
)

// File names used when none are configured.
const (
	DefaultBooksFile   = "books.txt"
	DefaultReadersFile = "readers.txt"
	DefaultBorrowsFile = "borrows.txt"
)

// ErrMalformedLine is returned in strict mode for a line that cannot be
// decoded.
var ErrMalformedLine = errors.New("malformed line")

// FileStore reads and writes a snapshot under one data directory.
type FileStore struct {
	dir         string
	booksFile   string
	readersFile string
	borrowsFile string
	strict      bool

	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithFileNames overrides the file names inside the data directory. Empty
// names keep the default.
func WithFileNames(books, readers, borrows string) Option {
	return func(s *FileStore) {
		if books != "" {
			s.booksFile = books
		}
		if readers != "" {
			s.readersFile = readers
		}
		if borrows != "" {
			s.borrowsFile = borrows
		}
	}
}

// WithStrict makes any malformed line fail the load.
func WithStrict(strict bool) Option {
	return func(s *FileStore) {
		s.strict = strict
	}
}

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithTracer sets the tracer for load and save spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *FileStore) {
		s.tracer = tracer
	}
}

// New returns a FileStore rooted at dir.
func New(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir:         dir,
		booksFile:   DefaultBooksFile,
		readersFile: DefaultReadersFile,
		borrowsFile: DefaultBorrowsFile,
		logger:      slog.Default(),
		tracer:      otel.Tracer("librarydesk/store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads all three files. A missing file means no data of that kind
// yet. The next-ID counters of the result are one past the highest ID read.
func (s *FileStore) Load(ctx context.Context) (library.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "store.load",
		trace.WithAttributes(
			attribute.String("store.dir", s.dir),
			attribute.Bool("store.strict", s.strict),
		),
	)
	defer span.End()

	snap := library.Snapshot{
		NextBookID:   catalog.FirstBookID,
		NextReaderID: membership.FirstReaderID,
	}

	var skipped int
	books, n, err := readLines(ctx, s, s.booksFile, decodeBook)
	if err != nil {
		return library.Snapshot{}, spanError(span, err)
	}
	skipped += n
	readers, n, err := readLines(ctx, s, s.readersFile, decodeReader)
	if err != nil {
		return library.Snapshot{}, spanError(span, err)
	}
	skipped += n
	records, n, err := readLines(ctx, s, s.borrowsFile, decodeRecord)
	if err != nil {
		return library.Snapshot{}, spanError(span, err)
	}
	skipped += n

	snap.Books = books
	snap.Readers = readers
	snap.Records = records
	for _, b := range books {
		snap.NextBookID = max(snap.NextBookID, b.ID+1)
	}
	for _, r := range readers {
		snap.NextReaderID = max(snap.NextReaderID, r.ID+1)
	}

	span.SetAttributes(
		attribute.Int("store.books", len(books)),
		attribute.Int("store.readers", len(readers)),
		attribute.Int("store.records", len(records)),
		attribute.Int("store.skipped_lines", skipped),
	)
	s.logger.DebugContext(ctx, "library loaded", "dir", s.dir,
		"books", len(books), "readers", len(readers), "records", len(records), "skipped", skipped)

	return snap, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// readLines decodes every non-blank line of name. It returns the decoded
// values and the number of lines skipped as malformed.
func readLines[T any](ctx context.Context, s *FileStore, name string, decode func(string) (T, error)) ([]T, int, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return decodeLines(ctx, s, name, f, decode)
}

func decodeLines[T any](ctx context.Context, s *FileStore, name string, r io.Reader, decode func(string) (T, error)) ([]T, int, error) {
	var (
		values  []T
		skipped int
		lineNo  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		v, err := decode(line)
		if errors.Is(err, errFieldDropped) && !s.strict {
			s.logger.WarnContext(ctx, "keeping line without unreadable field", "file", name, "line", lineNo, "error", err)
			values = append(values, v)
			continue
		}
		if err != nil {
			if s.strict {
				return nil, skipped, fmt.Errorf("%s:%d: %w: %w", name, lineNo, ErrMalformedLine, err)
			}
			skipped++
			s.logger.WarnContext(ctx, "skipping malformed line", "file", name, "line", lineNo, "error", err)
			continue
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return values, skipped, nil
}

// Save writes the snapshot. Each file is replaced atomically, so a failed
// save leaves the previous file intact.
func (s *FileStore) Save(ctx context.Context, snap library.Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "store.save",
		trace.WithAttributes(
			attribute.String("store.dir", s.dir),
			attribute.Int("store.books", len(snap.Books)),
			attribute.Int("store.readers", len(snap.Readers)),
			attribute.Int("store.records", len(snap.Records)),
		),
	)
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return spanError(span, fmt.Errorf("failed to create data directory: %w", err))
	}

	files := []struct {
		name  string
		lines []string
	}{
		{s.booksFile, encodeAll(snap.Books, encodeBook)},
		{s.readersFile, encodeAll(snap.Readers, encodeReader)},
		{s.borrowsFile, encodeAll(snap.Records, encodeRecord)},
	}
	for _, file := range files {
		if err := writeAtomic(filepath.Join(s.dir, file.name), file.lines); err != nil {
			return spanError(span, err)
		}
	}

	s.logger.InfoContext(ctx, "library saved", "dir", s.dir,
		"books", len(snap.Books), "readers", len(snap.Readers), "records", len(snap.Records))
	return nil
}

func encodeAll[T any](values []T, encode func(T) string) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = encode(v)
	}
	return lines
}

// writeAtomic writes to a temp file next to path, then renames it over path.
func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
