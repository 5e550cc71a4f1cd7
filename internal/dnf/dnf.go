// Package dnf converts truth tables into canonical sum-of-products
// expressions and back.
package dnf

import (
	"github.com/pborges/galc/internal/gal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TruthTable maps every combination of InputPins to the value of
// OutputPin. Index i selects InputPins[0] with its most significant bit
// and the last input pin with its least significant bit; a set bit means
// the pin is high.
type TruthTable struct {
	InputPins  []int
	OutputPin  int
	Table      []bool
	Sequential bool
}

// Synthesize returns the sum of minterms of a truth table: one term per
// true entry, in ascending index order. The result is not minimized and
// its term count is not checked against the chip.
func Synthesize(table TruthTable, chip *gal.Chip) (gal.Expression, error) {
	n := len(table.InputPins)
	if n == 0 || n > chip.InputCapacity() {
		return gal.Expression{}, errors.Wrapf(gal.ErrInvalidInputCount, "output pin %d: %d input pins (max %d)", table.OutputPin, n, chip.InputCapacity())
	}
	if want := 1 << uint(n); len(table.Table) != want {
		return gal.Expression{}, errors.Wrapf(gal.ErrTableSizeMismatch, "output pin %d: table has %d entries, want %d", table.OutputPin, len(table.Table), want)
	}

	expr := gal.Expression{
		OutputPin:  table.OutputPin,
		Sequential: table.Sequential,
	}
	for i, v := range table.Table {
		if v {
			expr.Terms = append(expr.Terms, minterm(i, table.InputPins))
		}
	}
	return expr, nil
}

func minterm(index int, pins []int) gal.Term {
	n := len(pins)
	lits := make([]gal.Literal, n)
	for k, pin := range pins {
		bit := index>>uint(n-1-k)&1 == 1
		lits[k] = gal.Literal{Pin: pin, Inverted: !bit}
	}
	return gal.Term{Literals: lits}
}

// SynthesizeAll synthesizes tables in order. It fails on the first bad
// table and then returns no expressions at all.
func SynthesizeAll(tables []TruthTable, chip *gal.Chip) ([]gal.Expression, error) {
	if len(tables) == 0 {
		return nil, errors.Wrap(gal.ErrEmptyInput, "synthesize")
	}
	exprs := make([]gal.Expression, 0, len(tables))
	for i, t := range tables {
		expr, err := Synthesize(t, chip)
		if err != nil {
			return nil, errors.Wrapf(err, "table %d (output pin %d)", i, t.OutputPin)
		}
		log.Debugf("table %d: %s", i, expr)
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// Tabulate evaluates an expression over the pins it references, in order
// of first appearance, and returns the equivalent truth table.
func Tabulate(expr gal.Expression, chip *gal.Chip) (TruthTable, error) {
	var pins []int
	index := make(map[int]int)
	for _, t := range expr.Terms {
		for _, l := range t.Literals {
			if _, ok := index[l.Pin]; !ok {
				index[l.Pin] = len(pins)
				pins = append(pins, l.Pin)
			}
		}
	}
	n := len(pins)
	if n == 0 || n > chip.InputCapacity() {
		return TruthTable{}, errors.Wrapf(gal.ErrInvalidInputCount, "output pin %d: %d input pins (max %d)", expr.OutputPin, n, chip.InputCapacity())
	}

	table := make([]bool, 1<<uint(n))
	for i := range table {
		for _, t := range expr.Terms {
			if holds(t, i, n, index) {
				table[i] = true
				break
			}
		}
	}
	return TruthTable{
		InputPins:  pins,
		OutputPin:  expr.OutputPin,
		Table:      table,
		Sequential: expr.Sequential,
	}, nil
}

func holds(t gal.Term, i, n int, index map[int]int) bool {
	for _, l := range t.Literals {
		high := i>>uint(n-1-index[l.Pin])&1 == 1
		if high == l.Inverted {
			return false
		}
	}
	return true
}
