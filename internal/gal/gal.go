package gal

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Literal is an input pin together with its polarity.
type Literal struct {
	Pin      int
	Inverted bool
}

func (l Literal) String() string {
	if l.Inverted {
		return fmt.Sprintf("!%d", l.Pin)
	}
	return fmt.Sprintf("%d", l.Pin)
}

// Term is a product term: the AND of its literals.
type Term struct {
	Literals []Literal
}

func (t Term) String() string {
	if len(t.Literals) == 0 {
		return "1"
	}
	parts := make([]string, len(t.Literals))
	for i, l := range t.Literals {
		parts[i] = l.String()
	}
	return strings.Join(parts, " & ")
}

// Expression is the sum-of-products logic driving one output pin.
type Expression struct {
	OutputPin  int
	Sequential bool
	Terms      []Term
}

// Mode is the feedback mode the expression's literals resolve under.
func (e Expression) Mode() Mode {
	if e.Sequential {
		return ModeRegistered
	}
	return ModeCombinatorial
}

func (e Expression) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d", e.OutputPin)
	if e.Sequential {
		buf.WriteString(".dff")
	}
	buf.WriteString(" = ")
	if len(e.Terms) == 0 {
		buf.WriteString("0")
		return buf.String()
	}
	for i, t := range e.Terms {
		if i > 0 {
			buf.WriteString(" | ")
		}
		buf.WriteString(t.String())
	}
	return buf.String()
}

// AssembleOne builds the fuse block of a single output: rowCount rows of
// rowLength fuses. Row 0 enables the output, row t+1 holds term t with the
// columns of its literals cleared. Rows past the last term are left false,
// which is the constant-false product term.
func AssembleOne(expr Expression, rowCount, rowLength int, chip *Chip) ([]bool, error) {
	pin := expr.OutputPin
	if !chip.IsValidOutput(pin) {
		return nil, errors.Wrapf(ErrInvalidOutputPin, "pin %d on %s", pin, chip.Name())
	}
	if len(expr.Terms) == 0 || rowCount <= 0 || rowLength <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameters, "pin %d: %d terms, %d rows of %d fuses", pin, len(expr.Terms), rowCount, rowLength)
	}
	if limit := chip.MaximumTerms(pin); len(expr.Terms) > limit {
		return nil, errors.Wrapf(ErrTooManyTerms, "pin %d: %d terms (max %d)", pin, len(expr.Terms), limit)
	}
	if len(expr.Terms)+1 > rowCount {
		return nil, errors.Wrapf(ErrInvalidParameters, "pin %d: %d terms do not fit in %d rows", pin, len(expr.Terms), rowCount)
	}

	fuses := make([]bool, rowCount*rowLength)
	fillRow(fuses, 0, rowLength, true)

	mode := expr.Mode()
	for t, term := range expr.Terms {
		row := t + 1
		fillRow(fuses, row, rowLength, true)
		for _, lit := range term.Literals {
			col, ok := chip.PinToIndex(lit.Pin, lit.Inverted, mode)
			if !ok || col >= rowLength {
				return nil, errors.Wrapf(ErrUnresolvedPin, "pin %d term %d: literal %s (%s)", pin, t, lit, mode)
			}
			fuses[row*rowLength+col] = false
		}
	}
	return fuses, nil
}

func fillRow(fuses []bool, row, rowLength int, v bool) {
	start := row * rowLength
	for i := start; i < start+rowLength; i++ {
		fuses[i] = v
	}
}

func anyTrue(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}
	return false
}
