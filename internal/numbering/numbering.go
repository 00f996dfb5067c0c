// Package numbering allocates human-readable work-order numbers of the
// form OS-{year}-{sequence:05d}.
//
// The sequence is derived from the primary-key high-water mark of the
// orders table (max(id) + 1). That derivation is only safe when it runs
// inside the write transaction that inserts the order, which is how the
// storage layer calls it. A colliding number is resolved by asking for the
// next candidate with NextAfter.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix starts every order number
	Prefix = "OS"
	// SequenceWidth is the zero-padded width of the sequence part
	SequenceWidth = 5
	// MaxAttempts bounds collision retries for a single save
	MaxAttempts = 5
)

// ErrMalformed is returned by Parse for strings that are not order numbers
var ErrMalformed = errors.New("malformed order number")

// SequenceSource exposes the high-water mark of existing order ids
type SequenceSource interface {
	MaxOrderID(ctx context.Context) (int64, error)
}

// Generator produces order numbers. The zero value uses the wall clock.
type Generator struct {
	now func() time.Time
}

// New creates a generator. A nil clock uses time.Now.
func New(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Year returns the current year according to the generator's clock
func (g *Generator) Year() int {
	if g == nil || g.now == nil {
		return time.Now().Year()
	}
	return g.now().Year()
}

// Next returns the number for the next order in the given year
func (g *Generator) Next(ctx context.Context, src SequenceSource, year int) (string, error) {
	return g.NextAfter(ctx, src, year, 0)
}

// NextAfter returns the candidate number after skipping `skip` sequences
// past the high-water mark. Used after a UNIQUE collision.
func (g *Generator) NextAfter(ctx context.Context, src SequenceSource, year int, skip int) (string, error) {
	maxID, err := src.MaxOrderID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read order sequence: %w", err)
	}
	if maxID < 0 {
		maxID = 0
	}
	return Format(year, maxID+1+int64(skip)), nil
}

// Format renders an order number
func Format(year int, sequence int64) string {
	return fmt.Sprintf("%s-%d-%0*d", Prefix, year, SequenceWidth, sequence)
}

// Parse splits an order number into its year and sequence
func Parse(number string) (year int, sequence int64, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != Prefix {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad year in %q", ErrMalformed, number)
	}
	sequence, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || sequence < 1 {
		return 0, 0, fmt.Errorf("%w: bad sequence in %q", ErrMalformed, number)
	}
	return year, sequence, nil
}
