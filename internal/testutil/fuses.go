package testutil

import (
	"bytes"
	"fmt"

	"github.com/pborges/galc/internal/gal"
)

// SectionName describes where fuse idx sits in chip's layout.
func SectionName(chip *gal.Chip, idx int) string {
	rowLen := chip.RowLength()
	preset := chip.SyncPresetFuse()
	modeStart := preset + rowLen
	switch {
	case idx < 0 || idx >= chip.NumFuses():
		return fmt.Sprintf("unknown(%d)", idx)
	case idx < rowLen:
		return fmt.Sprintf("AR col%d", idx)
	case idx < preset:
		for _, o := range chip.Outputs() {
			start, _ := chip.FirstFuse(o.Pin)
			end := start + chip.RowCount(o.Pin)*rowLen
			if idx >= start && idx < end {
				return fmt.Sprintf("pin%d row%d/%d col%d", o.Pin, (idx-start)/rowLen, chip.RowCount(o.Pin), (idx-start)%rowLen)
			}
		}
		return fmt.Sprintf("logic(%d)", idx)
	case idx < modeStart:
		return fmt.Sprintf("SP col%d", idx-preset)
	case idx < chip.SignatureFuse():
		for _, o := range chip.Outputs() {
			s0, s1, _ := chip.ModeFuses(o.Pin)
			if idx == s0 {
				return fmt.Sprintf("S0(pin%d)", o.Pin)
			}
			if idx == s1 {
				return fmt.Sprintf("S1(pin%d)", o.Pin)
			}
		}
		return fmt.Sprintf("mode(%d)", idx)
	default:
		return fmt.Sprintf("SIG[%d]", idx-chip.SignatureFuse())
	}
}

// CompareFuses returns a readable diff of two fuse vectors, or "" if they
// are equal.
func CompareFuses(chip *gal.Chip, got, want []bool) string {
	if len(got) != len(want) {
		return fmt.Sprintf("fuse length mismatch: got %d want %d", len(got), len(want))
	}
	var buf bytes.Buffer
	mismatches := 0
	for i := range got {
		if got[i] != want[i] {
			mismatches++
			fmt.Fprintf(&buf, "  fuse[%d] %s: got=%c want=%c\n", i, SectionName(chip, i), bit(got[i]), bit(want[i]))
			if mismatches >= 40 {
				fmt.Fprintf(&buf, "  ... (%d+ mismatches, truncated)\n", mismatches)
				break
			}
		}
	}
	if mismatches == 0 {
		return ""
	}
	return fmt.Sprintf("%d fuse mismatches:\n%s", mismatches, buf.String())
}

// PackBytes packs fuses eight to a byte, first fuse in the high bit, padding
// the last byte with zeros.
func PackBytes(fuses []bool) []byte {
	out := make([]byte, (len(fuses)+7)/8)
	for i, f := range fuses {
		if f {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func bit(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}
