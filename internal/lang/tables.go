package lang

import (
	"slices"
	"strings"

	"github.com/pborges/galc/internal/dnf"
	"github.com/pborges/galc/internal/gal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Tables evaluates every equation and table block that drives a declared
// pin into a truth table, in source order. Aliases are inlined first. The
// inputs of an equation's table are the pins it references, in order of
// first appearance; a block keeps its declared inputs.
func (p Program) Tables(maxInputs int) ([]dnf.TruthTable, error) {
	aliases := make(map[string]Equation)
	defined := make(map[string]int)
	var outputs []Equation
	for _, eq := range p.Equations {
		if prev, ok := defined[eq.Name]; ok {
			return nil, errors.Errorf("line %d: %q already defined on line %d", eq.Line, eq.Name, prev)
		}
		defined[eq.Name] = eq.Line
		if _, ok := p.Pins[eq.Name]; ok {
			outputs = append(outputs, eq)
		} else {
			aliases[eq.Name] = eq
		}
	}
	for _, b := range p.Blocks {
		for _, name := range b.Outputs {
			if prev, ok := defined[name]; ok {
				return nil, errors.Errorf("line %d: %q already defined on line %d", b.Line, name, prev)
			}
			if _, ok := p.Pins[name]; !ok {
				return nil, errors.Errorf("line %d: table output %q is not a pin", b.Line, name)
			}
			defined[name] = b.Line
		}
	}

	names := make([]string, 0, len(p.Registered))
	for name := range p.Registered {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		_, isPin := p.Pins[name]
		if _, ok := defined[name]; !ok || !isPin {
			return nil, errors.Errorf("line %d: %s.dff marks an undefined output", p.Registered[name], name)
		}
	}

	if len(outputs) == 0 && len(p.Blocks) == 0 {
		return nil, errors.Wrap(gal.ErrEmptyInput, "no equations drive an output pin")
	}

	type sourced struct {
		line  int
		table dnf.TruthTable
	}
	var all []sourced
	for _, eq := range outputs {
		t, err := p.table(eq, aliases, maxInputs)
		if err != nil {
			return nil, err
		}
		log.Debugf("line %d: %s on pin %d uses pins %v", eq.Line, eq.Name, t.OutputPin, t.InputPins)
		all = append(all, sourced{eq.Line, t})
	}
	for _, b := range p.Blocks {
		for k := range b.Outputs {
			t, err := p.blockTable(b, k, maxInputs)
			if err != nil {
				return nil, err
			}
			log.Debugf("line %d: table output %s on pin %d", b.Line, b.Outputs[k], t.OutputPin)
			all = append(all, sourced{b.Line, t})
		}
	}
	slices.SortStableFunc(all, func(a, b sourced) int { return a.line - b.line })
	tables := make([]dnf.TruthTable, len(all))
	for i, s := range all {
		tables[i] = s.table
	}
	return tables, nil
}

// blockTable converts column k of b from signal values to pin levels.
func (p Program) blockTable(b TableBlock, k int, maxInputs int) (dnf.TruthTable, error) {
	n := len(b.Inputs)
	if n > maxInputs {
		return dnf.TruthTable{}, errors.Wrapf(gal.ErrInvalidInputCount, "line %d: table has %d inputs (max %d)", b.Line, n, maxInputs)
	}
	pins := make([]int, n)
	for i, name := range b.Inputs {
		def, ok := p.Pins[name]
		if !ok {
			return dnf.TruthTable{}, errors.Errorf("line %d: undefined signal %q", b.Line, name)
		}
		pins[i] = def.Pin
	}
	out := p.Pins[b.Outputs[k]]
	col := b.Columns[k]
	table := make([]bool, len(col))
	for i := range table {
		j := 0
		for x, name := range b.Inputs {
			high := i>>uint(n-1-x)&1 == 1
			j <<= 1
			if high != p.Pins[name].ActiveLow {
				j |= 1
			}
		}
		table[i] = col[j] != out.ActiveLow
	}
	_, registered := p.Registered[b.Outputs[k]]
	return dnf.TruthTable{
		InputPins:  pins,
		OutputPin:  out.Pin,
		Table:      table,
		Sequential: registered,
	}, nil
}

func (p Program) table(eq Equation, aliases map[string]Equation, maxInputs int) (dnf.TruthTable, error) {
	expr, err := expand(eq.Expr, aliases, []string{eq.Name})
	if err != nil {
		return dnf.TruthTable{}, err
	}
	vars := signals(expr, nil)
	for _, v := range vars {
		if _, ok := p.Pins[v]; !ok {
			return dnf.TruthTable{}, errors.Errorf("line %d: undefined signal %q", eq.Line, v)
		}
	}
	n := len(vars)
	if n == 0 {
		return dnf.TruthTable{}, errors.Wrapf(gal.ErrInvalidInputCount, "line %d: %s does not depend on any pin", eq.Line, eq.Name)
	}
	if n > maxInputs {
		return dnf.TruthTable{}, errors.Wrapf(gal.ErrInvalidInputCount, "line %d: %s depends on %d pins (max %d)", eq.Line, eq.Name, n, maxInputs)
	}

	out := p.Pins[eq.Name]
	pins := make([]int, n)
	for k, v := range vars {
		pins[k] = p.Pins[v].Pin
	}
	table := make([]bool, 1<<uint(n))
	env := make(map[string]bool, n)
	for i := range table {
		for k, v := range vars {
			high := i>>uint(n-1-k)&1 == 1
			env[v] = high != p.Pins[v].ActiveLow
		}
		table[i] = eval(expr, env) != out.ActiveLow
	}
	_, registered := p.Registered[eq.Name]
	return dnf.TruthTable{
		InputPins:  pins,
		OutputPin:  out.Pin,
		Table:      table,
		Sequential: registered,
	}, nil
}

// expand inlines aliases. stack holds the names being expanded.
func expand(e Expr, aliases map[string]Equation, stack []string) (Expr, error) {
	switch x := e.(type) {
	case ExprIdent:
		eq, ok := aliases[x.Name]
		if !ok {
			return x, nil
		}
		next := append(stack[:len(stack):len(stack)], x.Name)
		if slices.Contains(stack, x.Name) {
			return nil, errors.Errorf("line %d: alias cycle %s", eq.Line, strings.Join(next, " -> "))
		}
		return expand(eq.Expr, aliases, next)
	case ExprNot:
		inner, err := expand(x.X, aliases, stack)
		if err != nil {
			return nil, err
		}
		return ExprNot{X: inner}, nil
	case ExprAnd:
		a, b, err := expandPair(x.A, x.B, aliases, stack)
		if err != nil {
			return nil, err
		}
		return ExprAnd{A: a, B: b}, nil
	case ExprOr:
		a, b, err := expandPair(x.A, x.B, aliases, stack)
		if err != nil {
			return nil, err
		}
		return ExprOr{A: a, B: b}, nil
	case ExprXor:
		a, b, err := expandPair(x.A, x.B, aliases, stack)
		if err != nil {
			return nil, err
		}
		return ExprXor{A: a, B: b}, nil
	default:
		return e, nil
	}
}

func expandPair(a, b Expr, aliases map[string]Equation, stack []string) (Expr, Expr, error) {
	ea, err := expand(a, aliases, stack)
	if err != nil {
		return nil, nil, err
	}
	eb, err := expand(b, aliases, stack)
	if err != nil {
		return nil, nil, err
	}
	return ea, eb, nil
}

// signals appends the identifiers of e to seen in order of first appearance.
func signals(e Expr, seen []string) []string {
	switch x := e.(type) {
	case ExprIdent:
		if !slices.Contains(seen, x.Name) {
			seen = append(seen, x.Name)
		}
	case ExprNot:
		seen = signals(x.X, seen)
	case ExprAnd:
		seen = signals(x.B, signals(x.A, seen))
	case ExprOr:
		seen = signals(x.B, signals(x.A, seen))
	case ExprXor:
		seen = signals(x.B, signals(x.A, seen))
	}
	return seen
}

func eval(e Expr, env map[string]bool) bool {
	switch x := e.(type) {
	case ExprIdent:
		return env[x.Name]
	case ExprConst:
		return x.Value
	case ExprNot:
		return !eval(x.X, env)
	case ExprAnd:
		return eval(x.A, env) && eval(x.B, env)
	case ExprOr:
		return eval(x.A, env) || eval(x.B, env)
	case ExprXor:
		return eval(x.A, env) != eval(x.B, env)
	}
	return false
}
