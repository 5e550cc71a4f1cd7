package jed

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// File is the fuse content of a parsed JEDEC file.
type File struct {
	QP          int
	QF          int
	G           int
	Default     bool
	Fuses       []bool
	Checksum    uint16
	HasChecksum bool
}

// Parse reads the fuse fields of a JEDEC file. Fuses not listed in an *L
// field take the *F default. A *C field must match the fuses read.
func Parse(data []byte) (File, error) {
	var j File
	s := string(data)
	s = strings.TrimPrefix(s, "\x02")
	if idx := strings.Index(s, "\x03"); idx >= 0 {
		s = s[:idx]
	}
	scanner := bufio.NewScanner(strings.NewReader(s))
	fuses := map[int]bool{}
	maxIndex := -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "*QP"):
			v, err := strconv.Atoi(strings.TrimSpace(line[3:]))
			if err != nil {
				return j, errors.Wrapf(err, "invalid QP field %q", line)
			}
			j.QP = v
		case strings.HasPrefix(line, "*QF"):
			v, err := strconv.Atoi(strings.TrimSpace(line[3:]))
			if err != nil {
				return j, errors.Wrapf(err, "invalid QF field %q", line)
			}
			j.QF = v
		case strings.HasPrefix(line, "*G"):
			v, err := strconv.Atoi(strings.TrimSpace(line[2:]))
			if err != nil {
				return j, errors.Wrapf(err, "invalid G field %q", line)
			}
			j.G = v
		case strings.HasPrefix(line, "*F"):
			switch strings.TrimSpace(line[2:]) {
			case "0":
				j.Default = false
			case "1":
				j.Default = true
			default:
				return j, errors.Errorf("invalid F field %q", line)
			}
		case strings.HasPrefix(line, "*C"):
			cs, err := strconv.ParseUint(strings.TrimSpace(line[2:]), 16, 16)
			if err != nil {
				return j, errors.Wrapf(err, "invalid C field %q", line)
			}
			j.Checksum = uint16(cs)
			j.HasChecksum = true
		case strings.HasPrefix(line, "*L"):
			parts := strings.SplitN(line[2:], " ", 2)
			if len(parts) != 2 {
				return j, errors.Errorf("invalid L field %q", line)
			}
			off, err := strconv.Atoi(parts[0])
			if err != nil {
				return j, errors.Wrapf(err, "invalid L field %q", line)
			}
			if off < 0 {
				return j, errors.Errorf("negative fuse offset in L field %q", line)
			}
			for i, ch := range strings.TrimSpace(parts[1]) {
				idx := off + i
				switch ch {
				case '1':
					fuses[idx] = true
				case '0':
					fuses[idx] = false
				default:
					return j, errors.Errorf("invalid bit %q at fuse %d", ch, idx)
				}
				if idx > maxIndex {
					maxIndex = idx
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return j, err
	}
	if j.QF == 0 {
		j.QF = maxIndex + 1
	}
	if maxIndex >= j.QF {
		return j, errors.Errorf("fuse %d beyond QF%d", maxIndex, j.QF)
	}
	j.Fuses = make([]bool, j.QF)
	for i := range j.Fuses {
		if v, ok := fuses[i]; ok {
			j.Fuses[i] = v
		} else {
			j.Fuses[i] = j.Default
		}
	}
	if j.HasChecksum {
		if got := FuseChecksum(j.Fuses); got != j.Checksum {
			return j, errors.Errorf("fuse checksum mismatch: file says %04x, fuses sum to %04x", j.Checksum, got)
		}
	}
	return j, nil
}
