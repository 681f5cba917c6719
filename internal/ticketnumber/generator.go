package ticketnumber

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "BRTS"

// MaxLength bounds a formatted number: a ten character prefix, a four digit
// year and the widest int64 sequence.
const MaxLength = 40

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)

// CounterStore hands out per-year sequence values. Next must be atomic: two
// callers for the same prefix and year never receive the same value, and
// values are never reused.
type CounterStore interface {
	Next(ctx context.Context, prefix string, year int) (int64, error)
}

// Generator produces PREFIX-YYYY-NNNN ticket numbers.
type Generator struct {
	prefix string
}

// NewGenerator validates the prefix and returns a generator.
func NewGenerator(prefix string) (*Generator, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !ValidPrefix(prefix) {
		return nil, fmt.Errorf("invalid ticket number prefix %q", prefix)
	}
	return &Generator{prefix: prefix}, nil
}

// ValidPrefix reports whether prefix is usable in a ticket number.
func ValidPrefix(prefix string) bool {
	return prefixPattern.MatchString(prefix)
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string { return g.prefix }

// Next draws the next sequence for year from store and formats it.
func (g *Generator) Next(ctx context.Context, store CounterStore, year int) (string, error) {
	if store == nil {
		return "", errors.New("ticketnumber: nil counter store")
	}
	seq, err := store.Next(ctx, g.prefix, year)
	if err != nil {
		return "", fmt.Errorf("next ticket sequence: %w", err)
	}
	return Format(g.prefix, year, seq), nil
}

// Format renders a ticket number. Sequences past 9999 widen instead of wrapping.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// Number is a parsed ticket number.
type Number struct {
	Prefix   string
	Year     int
	Sequence int64
}

// Parse splits a ticket number into its parts.
func Parse(s string) (Number, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || !ValidPrefix(parts[0]) || len(parts[1]) != 4 || len(parts[2]) < 4 {
		return Number{}, fmt.Errorf("malformed ticket number %q", s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Number{}, fmt.Errorf("malformed ticket year in %q", s)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return Number{}, fmt.Errorf("malformed ticket sequence in %q", s)
	}
	return Number{Prefix: parts[0], Year: year, Sequence: seq}, nil
}
