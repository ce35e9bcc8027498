package dict

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	d, err := Parse(strings.NewReader(" a \nb\n c\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}

	idx, err := d.Index("a")
	if err != nil || idx != 0 {
		t.Fatalf("Index(a) = %v, %v, want 0, nil", idx, err)
	}

	entry, err := d.Entry(2)
	if err != nil || entry != "c" {
		t.Fatalf("Entry(2) = %q, %v, want c, nil", entry, err)
	}
}

func TestDuplicateEntry(t *testing.T) {
	_, err := FromEntries([]string{"x", "y", "x"})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("got %v, want ErrDuplicateEntry", err)
	}
}

func TestMissingLookups(t *testing.T) {
	d, err := FromEntries([]string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := d.Index("z"); !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("got %v, want ErrMissingEntry", err)
	}

	if _, err := d.Entry(5); !errors.Is(err, ErrMissingIndex) {
		t.Fatalf("got %v, want ErrMissingIndex", err)
	}
}
