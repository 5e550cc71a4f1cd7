package lang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pborges/galc/internal/dnf"
	"github.com/pborges/galc/internal/gal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePins(t *testing.T) {
	src := `
/* inputs */
pin 1 = clk;
pin 2, 3 = a, !b;    // b is active low
pin [4..6] = x[0..2];
pin [16, 17] = [q0..q1];
pin 18 = y;
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	want := map[string]PinDef{
		"clk": {Pin: 1, Line: 3},
		"a":   {Pin: 2, Line: 4},
		"b":   {Pin: 3, ActiveLow: true, Line: 4},
		"x0":  {Pin: 4, Line: 5},
		"x1":  {Pin: 5, Line: 5},
		"x2":  {Pin: 6, Line: 5},
		"q0":  {Pin: 16, Line: 6},
		"q1":  {Pin: 17, Line: 6},
		"y":   {Pin: 18, Line: 7},
	}
	if diff := cmp.Diff(want, p.Pins); diff != "" {
		t.Errorf("pins (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"pin count mismatch": "pin 1, 2 = a;",
		"duplicate name":     "pin 1 = a; pin 2 = a;",
		"duplicate pin":      "pin 1 = a; pin 1 = b;",
		"bad pin number":     "pin x = a;",
		"keyword as name":    "pin 1 = true;",
		"unbalanced paren":   "pin 1 = a; pin 17 = y; y = (a;",
		"trailing token":     "pin 1 = a; pin 17 = y; y = a a;",
		"illegal character":  "pin 1 = a; pin 17 = y; y = a @ a;",
		"bad constant":       "pin 17 = y; y = 2;",
		"stray statement":    "hello world;",
		"empty rhs":          "y = ;",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse([]byte("pin 1 = a;\n\n/* two\nlines */\npin 17 = y;\ny = a &;\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 6")
}

func TestParsePrecedence(t *testing.T) {
	p, err := Parse([]byte("y = !a & b ^ c | d;"))
	require.NoError(t, err)
	require.Len(t, p.Equations, 1)
	want := ExprOr{
		A: ExprXor{
			A: ExprAnd{A: ExprNot{X: ExprIdent{Name: "a"}}, B: ExprIdent{Name: "b"}},
			B: ExprIdent{Name: "c"},
		},
		B: ExprIdent{Name: "d"},
	}
	assert.Equal(t, Expr(want), p.Equations[0].Expr)
}

func TestTablesSingleMinterm(t *testing.T) {
	p, err := Parse([]byte("pin 10 = a; pin 11 = b; pin 17 = y; y = a & b;"))
	require.NoError(t, err)
	tables, err := p.Tables(22)
	require.NoError(t, err)
	want := []dnf.TruthTable{{
		InputPins: []int{10, 11},
		OutputPin: 17,
		Table:     []bool{false, false, false, true},
	}}
	if diff := cmp.Diff(want, tables); diff != "" {
		t.Errorf("tables (-want +got):\n%s", diff)
	}
}

func TestTablesAliasesAndRegisters(t *testing.T) {
	src := `
pin 2 = a;
pin 3 = !b;
pin 13 = c;
pin 23 = q;
pin 22 = r;
sel = a # b;       // alias
q = sel ^ c;
r = !q & true;
q.dff;
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	tables, err := p.Tables(22)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	q := tables[0]
	assert.Equal(t, 23, q.OutputPin)
	assert.True(t, q.Sequential)
	assert.Equal(t, []int{2, 3, 13}, q.InputPins)
	// b is active low: signal b is true when pin 3 is low.
	for i, got := range q.Table {
		a := i>>2&1 == 1
		b := i>>1&1 == 0
		c := i&1 == 1
		assert.Equal(t, (a || b) != c, got, "index %d", i)
	}

	r := tables[1]
	assert.Equal(t, 22, r.OutputPin)
	assert.False(t, r.Sequential)
	assert.Equal(t, []int{23}, r.InputPins)
	assert.Equal(t, []bool{true, false}, r.Table)
}

func TestTablesActiveLowOutput(t *testing.T) {
	p, err := Parse([]byte("pin 1 = a; pin 14 = !y; y = a;"))
	require.NoError(t, err)
	tables, err := p.Tables(22)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, tables[0].Table)
}

func TestTablesDffOnEquation(t *testing.T) {
	p, err := Parse([]byte("pin 1 = a; pin 14 = y; y.dff = !a;"))
	require.NoError(t, err)
	tables, err := p.Tables(22)
	require.NoError(t, err)
	assert.True(t, tables[0].Sequential)
	assert.Equal(t, []bool{true, false}, tables[0].Table)
}

func TestTablesErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		max  int
		want error
	}{
		{name: "alias cycle", src: "pin 1 = a; pin 14 = y; s = t & a; t = s; y = s;", max: 22},
		{name: "undefined signal", src: "pin 1 = a; pin 14 = y; y = a & z;", max: 22},
		{name: "redefined", src: "pin 1 = a; pin 14 = y; y = a; y = !a;", max: 22},
		{name: "dff on alias", src: "pin 1 = a; pin 14 = y; s = a; y = s; s.dff;", max: 22},
		{name: "dff on undefined", src: "pin 1 = a; pin 14 = y; y = a; z.dff;", max: 22},
		{name: "no outputs", src: "pin 1 = a; s = a;", max: 22, want: gal.ErrEmptyInput},
		{name: "constant", src: "pin 14 = y; y = 1;", max: 22, want: gal.ErrInvalidInputCount},
		{name: "too many inputs", src: "pin 1 = a; pin 2 = b; pin 14 = y; y = a & b;", max: 1, want: gal.ErrInvalidInputCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.src))
			require.NoError(t, err)
			_, err = p.Tables(tc.max)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "a \n b\n", stripComments("a /* x\n y */ b// tail\n"))
	assert.Equal(t, "a ", stripComments("a /* unterminated"))
}

func TestParseTableForms(t *testing.T) {
	want := [][]bool{
		{false, false, false, true},
		{false, true, true, true},
		{false, true, true, false},
	}
	cases := map[string]string{
		"full": `
table(i0, i1 -> and, or, xor) {
	00 000
	01 011
	10 011
	11 110
}`,
		"count": `
table(i0, i1 -> and, or, xor).count {
	000
	011
	011
	110
}`,
		"fill": `
table(i0, i1 -> and, or, xor).fill(0) {
	01 011
	10 011
	11 110
}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := Parse([]byte(src))
			require.NoError(t, err)
			require.Len(t, p.Blocks, 1)
			b := p.Blocks[0]
			assert.Equal(t, 2, b.Line)
			assert.Equal(t, []string{"i0", "i1"}, b.Inputs)
			assert.Equal(t, []string{"and", "or", "xor"}, b.Outputs)
			if diff := cmp.Diff(want, b.Columns); diff != "" {
				t.Errorf("columns (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTableFillOne(t *testing.T) {
	p, err := Parse([]byte("table(a, b -> y).fill(1) { 10 0 }"))
	require.NoError(t, err)
	assert.Equal(t, [][]bool{{true, true, false, true}}, p.Blocks[0].Columns)
}

func TestParseTableEndsStatement(t *testing.T) {
	src := `
pin 1, 2 = i0, i1;
pin 17 = and
table(i0, i1 -> and) { 00 0 01 0 10 0 11 1 }
pin 18 = y;
`
	_, err := Parse([]byte(src))
	require.Error(t, err, "pin 17 has no terminating semicolon")

	src = `
pin 1, 2 = i0, i1;
pin 17 = and;
table(i0, i1 -> and) { 00 0 01 0 10 0 11 1 }
pin 18 = y;
y = i0;
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	require.Len(t, p.Blocks, 1)
	require.Len(t, p.Equations, 1)
	assert.Equal(t, PinDef{Pin: 18, Line: 5}, p.Pins["y"])
}

func TestParseTableErrors(t *testing.T) {
	cases := map[string]string{
		"no arrow":          "table(a, b) { 0 }",
		"missing header":    "table { 0 }",
		"bad fill":          "table(a -> y).fill(2) { 1 1 }",
		"unknown option":    "table(a -> y).sum { 0 1 }",
		"bad digit":         "table(a -> y) { 0 0 1 2 }",
		"short full":        "table(a, b -> y) { 00 0 01 1 }",
		"ragged rows":       "table(a, b -> y).fill(0) { 00 0 01 }",
		"duplicate row":     "table(a -> y).fill(0) { 1 1 1 0 }",
		"short count":       "table(a, b -> y, z).count { 00 01 11 }",
		"duplicate input":   "table(a, a -> y) { 00 0 01 0 10 0 11 0 }",
		"missing body":      "table(a -> y) 0 1",
		"keyword as signal": "pin 1 = table;",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestTablesFromBlock(t *testing.T) {
	src := `
pin 2, 3 = i0, !i1;
pin 17, 18 = and, !or;
pin 19 = x;
x = i0;
table(i0, i1 -> and, or) {
	00 00
	01 01
	10 01
	11 11
}
or.dff;
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	tables, err := p.Tables(22)
	require.NoError(t, err)
	// i1 and or are active low: pin 3 low means i1, pin 18 low means or.
	want := []dnf.TruthTable{
		{InputPins: []int{2}, OutputPin: 19, Table: []bool{false, true}},
		{InputPins: []int{2, 3}, OutputPin: 17, Table: []bool{false, false, true, false}},
		{InputPins: []int{2, 3}, OutputPin: 18, Table: []bool{false, true, false, false}, Sequential: true},
	}
	if diff := cmp.Diff(want, tables); diff != "" {
		t.Errorf("tables (-want +got):\n%s", diff)
	}
}

func TestTablesBlockErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		max  int
		want error
	}{
		{name: "output not a pin", src: "pin 1 = a; table(a -> y) { 0 0 1 1 }", max: 22},
		{name: "undefined input", src: "pin 14 = y; table(a -> y) { 0 0 1 1 }", max: 22},
		{name: "defined twice", src: "pin 1 = a; pin 14 = y; y = a; table(a -> y) { 0 0 1 1 }", max: 22},
		{name: "too many inputs", src: "pin 1, 2 = a, b; pin 14 = y; table(a, b -> y).count { 0 0 0 1 }", max: 1, want: gal.ErrInvalidInputCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.src))
			require.NoError(t, err)
			_, err = p.Tables(tc.max)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}
