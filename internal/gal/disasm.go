package gal

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Disassemble recovers the expressions of a fuse vector built by
// AssembleAll. Outputs whose S0 fuse is clear carry no logic and are
// skipped, as are rows that are entirely false.
func Disassemble(fuses []bool, chip *Chip) ([]Expression, error) {
	if len(fuses) != chip.NumFuses() {
		return nil, errors.Wrapf(ErrInvalidParameters, "fuse vector has %d fuses, %s has %d", len(fuses), chip.Name(), chip.NumFuses())
	}
	rowLen := chip.RowLength()

	var exprs []Expression
	for _, o := range chip.Outputs() {
		s0, s1, _ := chip.ModeFuses(o.Pin)
		if !fuses[s0] {
			continue
		}
		expr := Expression{OutputPin: o.Pin, Sequential: !fuses[s1]}
		cols := chip.columnLiterals(expr.Mode())

		off, _ := chip.FirstFuse(o.Pin)
		for r := 1; r < chip.RowCount(o.Pin); r++ {
			row := fuses[off+r*rowLen : off+(r+1)*rowLen]
			if !anyTrue(row) {
				continue
			}
			var term Term
			for col, intact := range row {
				if intact {
					continue
				}
				lit, ok := cols[col]
				if !ok {
					return nil, errors.Wrapf(ErrUnresolvedPin, "output pin %d row %d: column %d", o.Pin, r, col)
				}
				term.Literals = append(term.Literals, lit)
			}
			expr.Terms = append(expr.Terms, term)
		}
		if len(expr.Terms) == 0 {
			log.Debugf("pin %d enabled with no terms, skipping", o.Pin)
			continue
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}
