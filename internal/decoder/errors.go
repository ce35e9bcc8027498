package decoder

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is returned when an emission matrix's length does not
// match steps*vocab, or blank_id is not a valid token id (spec.md §7).
var ErrInvalidShape = errors.New("decoder: invalid shape")

func invalidShapef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidShape, fmt.Sprintf(format, args...))
}
