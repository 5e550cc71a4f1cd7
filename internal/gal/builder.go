package gal

import (
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AssembleAll builds the complete fuse vector of a device. Outputs without
// an expression get the chip's default block. The reset and preset rows and
// the signature stay false. On failure the error of the earliest expression
// is returned and no vector is produced.
func AssembleAll(exprs []Expression, chip *Chip) ([]bool, error) {
	if len(exprs) == 0 {
		return nil, errors.Wrapf(ErrEmptyInput, "assemble %s", chip.Name())
	}

	errs := make([]error, len(exprs))
	byPin := make(map[int]int, len(exprs))
	for i, e := range exprs {
		if !chip.IsValidOutput(e.OutputPin) {
			errs[i] = errors.Wrapf(ErrInvalidOutputPin, "expression %d (output pin %d)", i, e.OutputPin)
			continue
		}
		if j, dup := byPin[e.OutputPin]; dup {
			errs[i] = errors.Wrapf(ErrDuplicateOutput, "expression %d (output pin %d), already set by expression %d", i, e.OutputPin, j)
			continue
		}
		byPin[e.OutputPin] = i
	}

	outputs := chip.Outputs()
	blocks := make([][]bool, len(outputs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, o := range outputs {
		i, assigned := byPin[o.Pin]
		if !assigned {
			blocks[k] = chip.DefaultBlock(o.Pin)
			continue
		}
		k, o := k, o
		g.Go(func() error {
			e := exprs[i]
			log.Debugf("assembling pin %d: %d terms, %s", o.Pin, len(e.Terms), e.Mode())
			block, err := AssembleOne(e, chip.RowCount(o.Pin), chip.RowLength(), chip)
			if err != nil {
				errs[i] = errors.Wrapf(err, "expression %d (output pin %d)", i, o.Pin)
				return errs[i]
			}
			blocks[k] = block
			return nil
		})
	}
	// Earliest expression wins, not earliest goroutine.
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	fuses := make([]bool, chip.NumFuses())
	for k, o := range outputs {
		off, _ := chip.FirstFuse(o.Pin)
		copy(fuses[off:], blocks[k])
	}
	setModeFuses(fuses, chip, exprs, byPin)
	return fuses, nil
}

// setModeFuses sets S0 for every assigned output and S1 for the
// combinatorial ones.
func setModeFuses(fuses []bool, chip *Chip, exprs []Expression, byPin map[int]int) {
	for pin, i := range byPin {
		s0, s1, _ := chip.ModeFuses(pin)
		fuses[s0] = true
		fuses[s1] = !exprs[i].Sequential
	}
}
