package gal_test

import (
	"testing"

	"github.com/pborges/galc/internal/gal"
	"github.com/pborges/galc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goldenExpressions() []gal.Expression {
	return []gal.Expression{
		{
			OutputPin: 17,
			Terms:     []gal.Term{term(lit(11, false), lit(10, false))},
		},
		{
			OutputPin: 19,
			Terms: []gal.Term{
				term(lit(11, true), lit(10, false)),
				term(lit(11, false), lit(10, true)),
			},
		},
		{
			OutputPin: 18,
			Terms: []gal.Term{
				term(lit(11, true), lit(10, false)),
				term(lit(11, false), lit(10, true)),
				term(lit(11, false), lit(10, false)),
			},
		},
		{
			OutputPin:  23,
			Sequential: true,
			Terms: []gal.Term{
				term(lit(2, true), lit(3, false)),
				term(lit(2, false), lit(3, true)),
			},
		},
	}
}

// goldenBytes is the device vector packed eight fuses per byte, first fuse
// in the high bit. Bytes not listed are zero.
var goldenBytes = map[int]byte{
	5: 0x0F, 6: 0xFF, 7: 0xFF, 8: 0xFF, 9: 0xFF, 10: 0xFF, 11: 0xFB, 12: 0x7F,
	13: 0xFF, 14: 0xFF, 15: 0xFF, 16: 0xFF, 17: 0x7B, 18: 0xFF, 19: 0xFF, 20: 0xFF, 21: 0xFF,

	269: 0x0F, 270: 0xFF, 271: 0xFF, 272: 0xFF, 273: 0xFF, 274: 0xFF, 275: 0xFF, 276: 0xFF,
	277: 0xFF, 278: 0xFF, 279: 0xF7, 280: 0xBF, 281: 0xFF, 282: 0xFF, 283: 0xFF, 284: 0xFF, 285: 0xB7,

	363: 0xFF, 364: 0xFF, 365: 0xFF, 366: 0xFF, 367: 0xFF, 368: 0xFF, 369: 0xFF, 370: 0xFF,
	371: 0xFF, 372: 0xFF, 373: 0x7B, 374: 0xFF, 375: 0xFF, 376: 0xFF, 377: 0xFF, 378: 0xFB,
	379: 0x7F, 380: 0xFF, 381: 0xFF, 382: 0xFF, 383: 0xFF, 384: 0x77,

	456: 0x0F, 457: 0xFF, 458: 0xFF, 459: 0xFF, 460: 0xFF, 461: 0xFF, 462: 0xFF, 463: 0xFF,
	464: 0xFF, 465: 0xFF, 466: 0xF7, 467: 0x70,

	726: 0x80, 727: 0xFC,
}

func TestAssembleAllGolden(t *testing.T) {
	chip := g22v10(t)
	fuses, err := gal.AssembleAll(goldenExpressions(), chip)
	require.NoError(t, err)
	require.Len(t, fuses, 5892)

	want := make([]byte, 737)
	for i, b := range goldenBytes {
		want[i] = b
	}
	got := testutil.PackBytes(fuses)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d (%s): got %#02x want %#02x", i, testutil.SectionName(chip, i*8), got[i], want[i])
		}
	}
}

func TestAssembleAllIsOrderIndependent(t *testing.T) {
	chip := g22v10(t)
	exprs := goldenExpressions()
	want, err := gal.AssembleAll(exprs, chip)
	require.NoError(t, err)

	reversed := make([]gal.Expression, len(exprs))
	for i, e := range exprs {
		reversed[len(exprs)-1-i] = e
	}
	got, err := gal.AssembleAll(reversed, chip)
	require.NoError(t, err)
	assert.Empty(t, testutil.CompareFuses(chip, got, want))
}

func TestAssembleAllModeFuses(t *testing.T) {
	chip := g22v10(t)
	fuses, err := gal.AssembleAll(goldenExpressions(), chip)
	require.NoError(t, err)
	cases := []struct {
		pin    int
		s0, s1 bool
	}{
		{23, true, false},
		{19, true, true},
		{18, true, true},
		{17, true, true},
		{16, false, false},
		{14, false, false},
	}
	for _, tc := range cases {
		s0, s1, ok := chip.ModeFuses(tc.pin)
		require.True(t, ok)
		assert.Equal(t, tc.s0, fuses[s0], "S0 pin %d", tc.pin)
		assert.Equal(t, tc.s1, fuses[s1], "S1 pin %d", tc.pin)
	}
}

func TestAssembleAllUnassignedOutputsAreFalse(t *testing.T) {
	chip := g22v10(t)
	fuses, err := gal.AssembleAll([]gal.Expression{
		{OutputPin: 23, Terms: []gal.Term{term(lit(1, false))}},
	}, chip)
	require.NoError(t, err)
	for _, o := range chip.Outputs() {
		if o.Pin == 23 {
			continue
		}
		off, _ := chip.FirstFuse(o.Pin)
		block := fuses[off : off+chip.RowCount(o.Pin)*chip.RowLength()]
		assert.Equal(t, chip.DefaultBlock(o.Pin), block, "pin %d", o.Pin)
	}
	for i := 0; i < chip.RowLength(); i++ {
		assert.False(t, fuses[i], "AR fuse %d", i)
		assert.False(t, fuses[chip.SyncPresetFuse()+i], "SP fuse %d", i)
	}
	for i := chip.SignatureFuse(); i < chip.NumFuses(); i++ {
		assert.False(t, fuses[i], "signature fuse %d", i)
	}
}

func TestAssembleAllErrors(t *testing.T) {
	chip := g22v10(t)
	good := gal.Expression{OutputPin: 17, Terms: []gal.Term{term(lit(1, false))}}
	cases := []struct {
		name  string
		exprs []gal.Expression
		want  error
	}{
		{"empty", nil, gal.ErrEmptyInput},
		{"invalid pin", []gal.Expression{good, {OutputPin: 24, Terms: good.Terms}}, gal.ErrInvalidOutputPin},
		{"duplicate pin", []gal.Expression{good, good}, gal.ErrDuplicateOutput},
		{"no terms", []gal.Expression{good, {OutputPin: 18}}, gal.ErrInvalidParameters},
		{"unresolved literal", []gal.Expression{{OutputPin: 18, Terms: []gal.Term{term(lit(24, false))}}, good}, gal.ErrUnresolvedPin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fuses, err := gal.AssembleAll(tc.exprs, chip)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, fuses)
		})
	}
}

func TestAssembleAllReportsEarliestExpression(t *testing.T) {
	chip := g22v10(t)
	nine := make([]gal.Term, 9)
	for i := range nine {
		nine[i] = term(lit(1, false))
	}
	exprs := []gal.Expression{
		{OutputPin: 14, Terms: []gal.Term{term(lit(12, false))}},
		{OutputPin: 23, Terms: nine},
	}
	for i := 0; i < 20; i++ {
		_, err := gal.AssembleAll(exprs, chip)
		require.Error(t, err)
		require.ErrorIs(t, err, gal.ErrUnresolvedPin)
		require.NotErrorIs(t, err, gal.ErrTooManyTerms)
	}
}

func TestAssembleAllCustomChip(t *testing.T) {
	chip, err := gal.LoadChip([]byte(tinyChip))
	require.NoError(t, err)
	fuses, err := gal.AssembleAll([]gal.Expression{
		{OutputPin: 5, Sequential: true, Terms: []gal.Term{term(lit(1, false), lit(2, true))}},
	}, chip)
	require.NoError(t, err)
	require.Len(t, fuses, 68)

	want := make([]bool, 68)
	// Pin 5 block at 32: OE row then one term row.
	for i := 32; i < 48; i++ {
		want[i] = true
	}
	want[40] = false // 1 at column 0
	want[45] = false // !2 at column 5
	s0, s1, _ := chip.ModeFuses(5)
	assert.Equal(t, []int{66, 67}, []int{s0, s1})
	want[s0] = true
	assert.Empty(t, testutil.CompareFuses(chip, fuses, want))
}
