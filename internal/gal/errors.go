package gal

import "github.com/pkg/errors"

// Error kinds returned by the synthesizer and the assembler. Callers match
// them with errors.Is; the returned errors carry extra context.
var (
	ErrInvalidInputCount = errors.New("invalid input pin count")
	ErrTableSizeMismatch = errors.New("truth table size mismatch")
	ErrEmptyInput        = errors.New("no input given")
	ErrInvalidOutputPin  = errors.New("invalid output pin")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrTooManyTerms      = errors.New("too many terms for output pin")
	ErrUnresolvedPin     = errors.New("unresolved pin")
	ErrDuplicateOutput   = errors.New("output pin assigned more than once")
)
