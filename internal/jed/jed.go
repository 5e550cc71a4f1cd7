package jed

import (
	"fmt"
	"strings"

	"github.com/pborges/galc/internal/gal"
	"github.com/pkg/errors"
)

type Config struct {
	SecurityBit bool
	Header      []string
}

// MakeJEDEC renders a fuse vector for chip as a JEDEC file.
func MakeJEDEC(cfg Config, chip *gal.Chip, fuses []bool) (string, error) {
	if len(fuses) != chip.NumFuses() {
		return "", errors.Errorf("fuse vector has %d fuses, %s has %d", len(fuses), chip.Name(), chip.NumFuses())
	}
	var buf strings.Builder
	buf.WriteByte(0x02)
	buf.WriteByte('\n')
	for _, line := range cfg.Header {
		buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			buf.WriteByte('\n')
		}
	}
	fmt.Fprintf(&buf, "*QP%d\n", chip.NumPins())
	fmt.Fprintf(&buf, "*QF%d\n", chip.NumFuses())
	if cfg.SecurityBit {
		buf.WriteString("*G1\n")
	} else {
		buf.WriteString("*G0\n")
	}
	buf.WriteString("*F0\n")

	fw := fieldWriter{buf: &buf}
	rowLen := chip.RowLength()
	modeStart := chip.SyncPresetFuse() + rowLen
	for row := 0; row < modeStart; row += rowLen {
		chunk := fuses[row : row+rowLen]
		if anyTrue(chunk) {
			fw.write(chunk)
		} else {
			fw.skip(len(chunk))
		}
	}
	sigStart := chip.SignatureFuse()
	fw.write(fuses[modeStart:sigStart])
	if sigStart < len(fuses) {
		fw.write(fuses[sigStart:])
	}

	fmt.Fprintf(&buf, "*C%04x\n", FuseChecksum(fuses))
	buf.WriteString("*\n")
	buf.WriteByte(0x03)
	fmt.Fprintf(&buf, "%04x\n", fileChecksum([]byte(buf.String())))
	return buf.String(), nil
}

func anyTrue(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}
	return false
}

// fieldWriter emits one *L field per call, tracking the fuse offset.
type fieldWriter struct {
	buf *strings.Builder
	pos int
}

func (f *fieldWriter) write(bits []bool) {
	fmt.Fprintf(f.buf, "*L%05d ", f.pos)
	for _, b := range bits {
		if b {
			f.buf.WriteByte('1')
		} else {
			f.buf.WriteByte('0')
		}
	}
	f.buf.WriteByte('\n')
	f.pos += len(bits)
}

func (f *fieldWriter) skip(n int) { f.pos += n }

// FuseChecksum is the JEDEC *C value of a fuse vector: the 16-bit sum of
// its bytes, packed eight fuses at a time with the first fuse in bit 0.
func FuseChecksum(fuses []bool) uint16 {
	var sum uint16
	for i := 0; i < len(fuses); i += 8 {
		var b byte
		for j := 0; j < 8 && i+j < len(fuses); j++ {
			if fuses[i+j] {
				b |= 1 << uint(j)
			}
		}
		sum += uint16(b)
	}
	return sum
}

func fileChecksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
