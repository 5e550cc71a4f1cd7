// Package equiv checks fuse maps against the truth tables they were built
// from, using binary decision diagrams.
package equiv

import (
	"fmt"
	"strings"

	"github.com/dalzilio/rudd"
	"github.com/pborges/galc/internal/dnf"
	"github.com/pborges/galc/internal/gal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrNotEquivalent is returned when recovered logic differs from its table.
var ErrNotEquivalent = errors.New("logic differs from truth table")

var errFound = errors.New("witness found")

// Fuses disassembles a fuse vector and checks every table against the logic
// found for its output pin.
func Fuses(tables []dnf.TruthTable, fuses []bool, chip *gal.Chip) error {
	exprs, err := gal.Disassemble(fuses, chip)
	if err != nil {
		return err
	}
	byPin := make(map[int]gal.Expression, len(exprs))
	for _, e := range exprs {
		byPin[e.OutputPin] = e
	}
	for _, t := range tables {
		e, ok := byPin[t.OutputPin]
		if !ok {
			return errors.Wrapf(ErrNotEquivalent, "output pin %d: not enabled in fuse map", t.OutputPin)
		}
		if e.Sequential != t.Sequential {
			return errors.Wrapf(ErrNotEquivalent, "output pin %d: mode %s, table wants %s", t.OutputPin, e.Mode(), modeOf(t))
		}
		if err := Table(t, e); err != nil {
			return err
		}
		log.Debugf("pin %d: fuse map matches table", t.OutputPin)
	}
	return nil
}

// Table reports whether expr computes table. Pins the expression uses that
// the table does not list make the two differ unless they cancel out.
func Table(table dnf.TruthTable, expr gal.Expression) error {
	levels := make(map[int]int)
	var pins []int
	addPin := func(pin int) {
		if _, ok := levels[pin]; !ok {
			levels[pin] = len(pins)
			pins = append(pins, pin)
		}
	}
	for _, pin := range table.InputPins {
		addPin(pin)
	}
	for _, t := range expr.Terms {
		for _, l := range t.Literals {
			addPin(l.Pin)
		}
	}
	if len(pins) == 0 {
		return errors.Wrapf(gal.ErrInvalidInputCount, "output pin %d", table.OutputPin)
	}
	if want := 1 << uint(len(table.InputPins)); len(table.Table) != want {
		return errors.Wrapf(gal.ErrTableSizeMismatch, "output pin %d: table has %d entries, want %d", table.OutputPin, len(table.Table), want)
	}

	bdd, err := rudd.New(len(pins))
	if err != nil {
		return errors.Wrap(err, "bdd")
	}
	want := fromTable(bdd, table, levels)
	got := fromExpression(bdd, expr, levels)
	diff := bdd.Apply(want, got, rudd.OPxor)
	if bdd.Errored() {
		return errors.Errorf("bdd: %s", bdd.Error())
	}
	if bdd.Satcount(diff).Sign() == 0 {
		return nil
	}

	var witness []int
	err = bdd.Allsat(func(varset []int) error {
		witness = append([]int(nil), varset...)
		return errFound
	}, diff)
	if err != nil && !errors.Is(err, errFound) {
		return errors.Wrap(err, "bdd")
	}
	return errors.Wrapf(ErrNotEquivalent, "output pin %d: differs at %s", table.OutputPin, describe(pins, witness))
}

func fromTable(bdd *rudd.BDD, table dnf.TruthTable, levels map[int]int) rudd.Node {
	n := len(table.InputPins)
	acc := bdd.False()
	for i, v := range table.Table {
		if !v {
			continue
		}
		term := bdd.True()
		for k, pin := range table.InputPins {
			if i>>uint(n-1-k)&1 == 1 {
				term = bdd.And(term, bdd.Ithvar(levels[pin]))
			} else {
				term = bdd.And(term, bdd.NIthvar(levels[pin]))
			}
		}
		acc = bdd.Or(acc, term)
	}
	return acc
}

func fromExpression(bdd *rudd.BDD, expr gal.Expression, levels map[int]int) rudd.Node {
	acc := bdd.False()
	for _, t := range expr.Terms {
		term := bdd.True()
		for _, l := range t.Literals {
			if l.Inverted {
				term = bdd.And(term, bdd.NIthvar(levels[l.Pin]))
			} else {
				term = bdd.And(term, bdd.Ithvar(levels[l.Pin]))
			}
		}
		acc = bdd.Or(acc, term)
	}
	return acc
}

// describe renders an assignment; don't-care levels read as low.
func describe(pins []int, varset []int) string {
	parts := make([]string, len(pins))
	for i, pin := range pins {
		v := 0
		if i < len(varset) && varset[i] == 1 {
			v = 1
		}
		parts[i] = fmt.Sprintf("%d=%d", pin, v)
	}
	return strings.Join(parts, " ")
}

func modeOf(t dnf.TruthTable) gal.Mode {
	if t.Sequential {
		return gal.ModeRegistered
	}
	return gal.ModeCombinatorial
}
