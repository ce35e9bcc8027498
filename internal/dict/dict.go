// Package dict implements the bidirectional string⟷index vocabulary
// mapping described by spec.md §3/§6: entries are read one per line, the
// index is the 0-based line number, and lookups in either direction are
// total functions returning typed errors on miss.
package dict

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Error kinds for the dictionary loader (spec.md §7).
var (
	// ErrDuplicateEntry is returned when an entry is added twice.
	ErrDuplicateEntry = errors.New("dict: duplicate entry")
	// ErrMissingEntry is returned when a string has no known index.
	ErrMissingEntry = errors.New("dict: missing entry")
	// ErrMissingIndex is returned when an index has no known entry.
	ErrMissingIndex = errors.New("dict: missing index")
)

// Dict is a bidirectional mapping between string vocabulary entries and
// their integer indices.
type Dict struct {
	entryToIdx map[string]int32
	idxToEntry []string
}

// New returns an empty Dict.
func New() *Dict {
	return &Dict{entryToIdx: make(map[string]int32)}
}

// Read loads a Dict from the file at path. See Parse for the format.
func Read(path string) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dict: read %q: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads one entry per line from r, trimming leading/trailing
// whitespace, and assigns indices by 0-based line number. No lines are
// skipped, including blank ones.
func Parse(r io.Reader) (*Dict, error) {
	d := New()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if err := d.add(entry); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dict: read: %w", err)
	}

	return d, nil
}

// FromEntries builds a Dict from an in-memory entry list, indexed by
// position.
func FromEntries(entries []string) (*Dict, error) {
	d := New()
	for _, entry := range entries {
		if err := d.add(entry); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Dict) add(entry string) error {
	if _, ok := d.entryToIdx[entry]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateEntry, entry)
	}

	idx := int32(len(d.idxToEntry))
	d.entryToIdx[entry] = idx
	d.idxToEntry = append(d.idxToEntry, entry)

	return nil
}

// Len returns the number of entries in the dictionary.
func (d *Dict) Len() int {
	return len(d.idxToEntry)
}

// Index returns the integer index of entry, or ErrMissingEntry.
func (d *Dict) Index(entry string) (int32, error) {
	idx, ok := d.entryToIdx[entry]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingEntry, entry)
	}
	return idx, nil
}

// Entry returns the string entry at idx, or ErrMissingIndex.
func (d *Dict) Entry(idx int32) (string, error) {
	if idx < 0 || int(idx) >= len(d.idxToEntry) {
		return "", fmt.Errorf("%w: %d", ErrMissingIndex, idx)
	}
	return d.idxToEntry[idx], nil
}
