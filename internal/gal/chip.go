package gal

import (
	"sort"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Mode selects which side of an OLMC feeds back into the AND array.
type Mode int

const (
	ModeCombinatorial Mode = iota
	ModeRegistered
)

func (m Mode) String() string {
	switch m {
	case ModeCombinatorial:
		return "combinatorial"
	case ModeRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Output is an OLMC output pin and the number of product terms it can hold.
type Output struct {
	Pin      int
	MaxTerms int
}

// SpecialPin is an input line with a fixed column in every row.
type SpecialPin struct {
	Pin    int
	Column int
}

// Chip describes the fuse layout of a device. A Chip is immutable once
// built and may be shared between goroutines.
type Chip struct {
	name     string
	numPins  int
	numFuses int
	inputs   []int
	outputs  []Output // ascending pin order
	special  []SpecialPin
}

// Built-in devices, by canonical name.
var builtinChips = map[string]func() *Chip{
	"GAL22V10": gal22v10,
}

func gal22v10() *Chip {
	return &Chip{
		name:     "GAL22V10",
		numPins:  24,
		numFuses: 5892,
		inputs:   []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23},
		outputs: []Output{
			{14, 8}, {15, 10}, {16, 12}, {17, 14}, {18, 16},
			{19, 16}, {20, 14}, {21, 12}, {22, 10}, {23, 8},
		},
		special: []SpecialPin{{13, 42}},
	}
}

// Devices returns the names of the built-in devices.
func Devices() []string {
	names := make([]string, 0, len(builtinChips))
	for name := range builtinChips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseChip returns the built-in descriptor for a device name such as
// g22v10, GAL22V10 or 22v10.
func ParseChip(name string) (*Chip, error) {
	n := normalizeDevice(name)
	for canonical, build := range builtinChips {
		if strings.Contains(n, strings.TrimPrefix(canonical, "GAL")) {
			return build(), nil
		}
	}
	return nil, errors.Errorf("unsupported device: %s", name)
}

func normalizeDevice(name string) string {
	// Accept CUPL-style names like g22v10.
	var buf []rune
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			buf = append(buf, r)
			continue
		}
		if r >= 'a' && r <= 'z' {
			buf = append(buf, r-('a'-'A'))
			continue
		}
		if r >= '0' && r <= '9' {
			buf = append(buf, r)
		}
	}
	upper := string(buf)
	if len(upper) >= 5 && upper[0] == 'G' && !strings.HasPrefix(upper, "GAL") {
		upper = "GAL" + upper[1:]
	}
	return upper
}

type chipFile struct {
	Name         string  `json:"Name,omitempty"`
	NumFuses     int     `json:"NumFuses"`
	TotalNumPins int     `json:"TotalNumPins"`
	InputPins    []int   `json:"InputPins"`
	OutputPins   [][]int `json:"OutputPins"`
	SpecialPins  [][]int `json:"SpecialPins"`
}

// LoadChip decodes a YAML or JSON device descriptor.
func LoadChip(data []byte) (*Chip, error) {
	var f chipFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode device descriptor")
	}
	outputs := make([]Output, 0, len(f.OutputPins))
	for i, pair := range f.OutputPins {
		if len(pair) != 2 {
			return nil, errors.Errorf("OutputPins[%d]: expected [pin, maxTerms]", i)
		}
		outputs = append(outputs, Output{Pin: pair[0], MaxTerms: pair[1]})
	}
	special := make([]SpecialPin, 0, len(f.SpecialPins))
	for i, pair := range f.SpecialPins {
		if len(pair) != 2 {
			return nil, errors.Errorf("SpecialPins[%d]: expected [pin, column]", i)
		}
		special = append(special, SpecialPin{Pin: pair[0], Column: pair[1]})
	}
	name := f.Name
	if name == "" {
		name = "custom"
	}
	return NewChip(name, f.TotalNumPins, f.NumFuses, f.InputPins, outputs, special)
}

// NewChip validates a layout and returns its descriptor.
func NewChip(name string, numPins, numFuses int, inputs []int, outputs []Output, special []SpecialPin) (*Chip, error) {
	if numPins <= 0 || numFuses <= 0 {
		return nil, errors.Errorf("%s: pin and fuse counts must be positive", name)
	}
	if len(outputs) == 0 {
		return nil, errors.Errorf("%s: no output pins", name)
	}
	c := &Chip{
		name:     name,
		numPins:  numPins,
		numFuses: numFuses,
		inputs:   append([]int(nil), inputs...),
		outputs:  append([]Output(nil), outputs...),
		special:  append([]SpecialPin(nil), special...),
	}
	sort.Slice(c.outputs, func(i, j int) bool { return c.outputs[i].Pin < c.outputs[j].Pin })

	inRange := func(pin int) bool { return pin >= 1 && pin <= numPins }
	seen := make(map[int]bool)
	for _, pin := range c.inputs {
		if !inRange(pin) {
			return nil, errors.Errorf("%s: input pin %d out of range", name, pin)
		}
		if seen[pin] {
			return nil, errors.Errorf("%s: input pin %d listed twice", name, pin)
		}
		seen[pin] = true
	}
	rowLen := c.RowLength()
	for _, sp := range c.special {
		if !inRange(sp.Pin) {
			return nil, errors.Errorf("%s: special pin %d out of range", name, sp.Pin)
		}
		if seen[sp.Pin] {
			return nil, errors.Errorf("%s: special pin %d is also an input", name, sp.Pin)
		}
		seen[sp.Pin] = true
		if sp.Column < 0 || sp.Column+1 >= rowLen {
			return nil, errors.Errorf("%s: special pin %d column %d outside row of %d", name, sp.Pin, sp.Column, rowLen)
		}
	}
	for i, o := range c.outputs {
		if !inRange(o.Pin) {
			return nil, errors.Errorf("%s: output pin %d out of range", name, o.Pin)
		}
		if i > 0 && c.outputs[i-1].Pin == o.Pin {
			return nil, errors.Errorf("%s: output pin %d listed twice", name, o.Pin)
		}
		if o.MaxTerms <= 0 {
			return nil, errors.Errorf("%s: output pin %d has no product terms", name, o.Pin)
		}
		if col := 2 + 4*(len(c.outputs)-1-i); col+1 >= rowLen {
			return nil, errors.Errorf("%s: output pin %d feedback column %d outside row of %d", name, o.Pin, col, rowLen)
		}
	}
	for _, pin := range c.inputs {
		if c.IsValidOutput(pin) {
			continue
		}
		if col := (pin - 1) * 4; col+1 >= rowLen {
			return nil, errors.Errorf("%s: input pin %d column %d outside row of %d", name, pin, col, rowLen)
		}
	}
	if end := c.SignatureFuse(); end > numFuses {
		return nil, errors.Errorf("%s: layout needs %d fuses, device has %d", name, end, numFuses)
	}
	if err := c.checkColumns(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return c, nil
}

// checkColumns rejects layouts where two literals resolve to one column.
func (c *Chip) checkColumns() error {
	var pins []int
	seen := make(map[int]bool)
	for _, sp := range c.special {
		pins = append(pins, sp.Pin)
	}
	for _, o := range c.outputs {
		pins = append(pins, o.Pin)
	}
	pins = append(pins, c.inputs...)
	for _, mode := range []Mode{ModeCombinatorial, ModeRegistered} {
		used := make(map[int]int)
		clear(seen)
		for _, pin := range pins {
			if seen[pin] {
				continue
			}
			seen[pin] = true
			for _, inv := range []bool{false, true} {
				col, ok := c.PinToIndex(pin, inv, mode)
				if !ok {
					continue
				}
				if other, dup := used[col]; dup {
					return errors.Errorf("pins %d and %d share column %d", other, pin, col)
				}
				used[col] = pin
			}
		}
	}
	return nil
}

func (c *Chip) Name() string  { return c.name }
func (c *Chip) NumPins() int  { return c.numPins }
func (c *Chip) NumFuses() int { return c.numFuses }

// Outputs returns the output pins in ascending order.
func (c *Chip) Outputs() []Output { return append([]Output(nil), c.outputs...) }

// Inputs returns the declared input pins.
func (c *Chip) Inputs() []int { return append([]int(nil), c.inputs...) }

// InputCapacity is the number of input lines feeding the AND array.
func (c *Chip) InputCapacity() int { return len(c.inputs) + len(c.special) }

// RowLength is the number of fuses in one AND-array row: one column per
// polarity of every input line.
func (c *Chip) RowLength() int { return c.InputCapacity() * 2 }

func (c *Chip) outputIndex(pin int) (int, bool) {
	for i, o := range c.outputs {
		if o.Pin == pin {
			return i, true
		}
	}
	return 0, false
}

func (c *Chip) IsValidOutput(pin int) bool {
	_, ok := c.outputIndex(pin)
	return ok
}

// MaximumTerms returns the product-term capacity of an output pin, or 0 if
// pin is not an output.
func (c *Chip) MaximumTerms(pin int) int {
	i, ok := c.outputIndex(pin)
	if !ok {
		return 0
	}
	return c.outputs[i].MaxTerms
}

// RowCount is the number of rows reserved for an output: the output-enable
// row followed by the term rows.
func (c *Chip) RowCount(pin int) int {
	if !c.IsValidOutput(pin) {
		return 0
	}
	return c.MaximumTerms(pin) + 1
}

// FirstFuse returns the offset of an output's block. Row 0 of the array is
// the asynchronous reset term; blocks follow from the highest output pin
// down.
func (c *Chip) FirstFuse(pin int) (int, bool) {
	if !c.IsValidOutput(pin) {
		return 0, false
	}
	off := c.RowLength()
	for _, o := range c.outputs {
		if o.Pin > pin {
			off += (o.MaxTerms + 1) * c.RowLength()
		}
	}
	return off, true
}

// SyncPresetFuse is the first fuse of the synchronous preset row, which
// follows the last output block.
func (c *Chip) SyncPresetFuse() int {
	off := c.RowLength()
	for _, o := range c.outputs {
		off += (o.MaxTerms + 1) * c.RowLength()
	}
	return off
}

// ModeFuses returns the S0/S1 fuse indices of an output. The pairs follow
// the preset row, highest output pin first.
func (c *Chip) ModeFuses(pin int) (s0, s1 int, ok bool) {
	i, ok := c.outputIndex(pin)
	if !ok {
		return 0, 0, false
	}
	start := c.SyncPresetFuse() + c.RowLength() + (len(c.outputs)-1-i)*2
	return start, start + 1, true
}

// SignatureFuse is the first fuse after the mode fuses.
func (c *Chip) SignatureFuse() int {
	return c.SyncPresetFuse() + c.RowLength() + len(c.outputs)*2
}

// DefaultBlock is the block written for an output with no logic: every
// row is the constant-false term and the output is never enabled.
func (c *Chip) DefaultBlock(pin int) []bool {
	return make([]bool, c.RowCount(pin)*c.RowLength())
}

// PinToIndex resolves a literal to its column within a row. Feedback from
// an output pin depends on mode since a registered output feeds back
// inverted.
func (c *Chip) PinToIndex(pin int, inverted bool, mode Mode) (int, bool) {
	for _, sp := range c.special {
		if sp.Pin == pin {
			return sp.Column + boolToInt(inverted), true
		}
	}

	if i, ok := c.outputIndex(pin); ok {
		col := 2 + (len(c.outputs)-1-i)*4
		switch mode {
		case ModeCombinatorial:
			return col + boolToInt(inverted), true
		case ModeRegistered:
			return col + boolToInt(!inverted), true
		default:
			return 0, false
		}
	}

	for _, in := range c.inputs {
		if in == pin {
			return (pin-1)*4 + boolToInt(inverted), true
		}
	}
	return 0, false
}

// columnLiterals maps every resolvable column back to its literal.
func (c *Chip) columnLiterals(mode Mode) map[int]Literal {
	cols := make(map[int]Literal)
	add := func(pin int) {
		for _, inv := range []bool{false, true} {
			if col, ok := c.PinToIndex(pin, inv, mode); ok {
				cols[col] = Literal{Pin: pin, Inverted: inv}
			}
		}
	}
	for _, sp := range c.special {
		add(sp.Pin)
	}
	for _, o := range c.outputs {
		add(o.Pin)
	}
	for _, pin := range c.inputs {
		add(pin)
	}
	return cols
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
