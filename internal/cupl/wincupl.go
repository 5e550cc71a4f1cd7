// Package cupl renders truth tables as WinCUPL source, one TABLE statement
// per output pin.
package cupl

import (
	"fmt"
	"strings"

	"github.com/pborges/galc/internal/dnf"
	"github.com/pborges/galc/internal/gal"
	"github.com/pkg/errors"
)

// Header is the title block of a CUPL file. Empty fields are left out.
type Header struct {
	Name     string
	PartNo   string
	Revision string
	Device   string
}

func (h Header) lines() []string {
	var out []string
	for _, kv := range [][2]string{
		{"Name", h.Name},
		{"PartNo", h.PartNo},
		{"Revision", h.Revision},
		{"Device", h.Device},
	} {
		if kv[1] != "" {
			out = append(out, fmt.Sprintf("%-9s%s ;", kv[0], kv[1]))
		}
	}
	return out
}

func inName(pin int) string  { return fmt.Sprintf("in_%dp", pin) }
func outName(pin int) string { return fmt.Sprintf("out_%dp", pin) }

// Write renders tables as a CUPL source file. An input pin that is also
// an output is referenced by its output name. A registered output is
// driven through an intermediate variable reg_<pin> onto its .d input.
func Write(tables []dnf.TruthTable, h Header) (string, error) {
	if len(tables) == 0 {
		return "", errors.Wrap(gal.ErrEmptyInput, "cupl")
	}
	outputs := make(map[int]bool, len(tables))
	for i, t := range tables {
		n := len(t.InputPins)
		if n == 0 {
			return "", errors.Wrapf(gal.ErrInvalidInputCount, "table %d (output pin %d)", i, t.OutputPin)
		}
		if want := 1 << uint(n); len(t.Table) != want {
			return "", errors.Wrapf(gal.ErrTableSizeMismatch, "table %d (output pin %d): %d entries, want %d", i, t.OutputPin, len(t.Table), want)
		}
		if outputs[t.OutputPin] {
			return "", errors.Wrapf(gal.ErrDuplicateOutput, "table %d (output pin %d)", i, t.OutputPin)
		}
		outputs[t.OutputPin] = true
	}
	name := func(pin int) string {
		if outputs[pin] {
			return outName(pin)
		}
		return inName(pin)
	}

	var buf strings.Builder
	for _, line := range h.lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	declared := make(map[int]bool)
	for _, t := range tables {
		for _, pin := range t.InputPins {
			if !outputs[pin] && !declared[pin] {
				declared[pin] = true
				fmt.Fprintf(&buf, "Pin %d = %s;\n", pin, inName(pin))
			}
		}
	}
	for _, t := range tables {
		fmt.Fprintf(&buf, "Pin %d = %s;\n", t.OutputPin, outName(t.OutputPin))
	}
	buf.WriteString("\n\n")

	for _, t := range tables {
		names := make([]string, len(t.InputPins))
		for k, pin := range t.InputPins {
			names[k] = name(pin)
		}
		fmt.Fprintf(&buf, "Field in_%df = [%s];\n", t.OutputPin, strings.Join(names, ", "))
		target := fmt.Sprintf("out_%df", t.OutputPin)
		if t.Sequential {
			target = fmt.Sprintf("reg_%d", t.OutputPin)
		} else {
			fmt.Fprintf(&buf, "Field %s = %s;\n", target, outName(t.OutputPin))
		}
		fmt.Fprintf(&buf, "Table in_%df => %s {\n", t.OutputPin, target)
		n := len(t.InputPins)
		for i, v := range t.Table {
			fmt.Fprintf(&buf, "  'b'%0*b => 'b'%d;\n", n, i, boolToInt(v))
		}
		buf.WriteString("}\n")
		if t.Sequential {
			fmt.Fprintf(&buf, "%s.d = %s;\n", outName(t.OutputPin), target)
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
