// internal/cli/prompter.go
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"librarydesk/internal/calendar"
)

var errInvalidNumber = errors.New("invalid number")

// prompter reads one answer per line. It returns io.EOF once input ends.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *prompter) Int(prompt string) (int, error) {
	s, err := p.Line(prompt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidNumber, s)
	}
	return n, nil
}

func (p *prompter) Int64(prompt string) (int64, error) {
	s, err := p.Line(prompt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidNumber, s)
	}
	return n, nil
}

// Date asks until it gets a YYYY-MM-DD date or an empty answer.
func (p *prompter) Date(prompt string) (time.Time, error) {
	for {
		s, err := p.Line(prompt)
		if err != nil {
			return time.Time{}, err
		}
		d, err := calendar.Parse(s)
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(p.out, "Invalid date, use YYYY-MM-DD")
	}
}

// Price asks until it gets a non-negative number.
func (p *prompter) Price(prompt string) (float64, error) {
	for {
		v, err := p.Amount(prompt)
		if err != nil {
			return 0, err
		}
		if v >= 0 && !math.IsInf(v, 1) {
			return v, nil
		}
		fmt.Fprintln(p.out, "Price must be a non-negative number")
	}
}

// Amount asks until it gets a number.
func (p *prompter) Amount(prompt string) (float64, error) {
	for {
		s, err := p.Line(prompt)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return v, nil
		}
		fmt.Fprintln(p.out, "Invalid number")
	}
}
