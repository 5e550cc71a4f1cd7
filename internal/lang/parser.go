// Package lang parses the galc source language: pin declarations, boolean
// equations, literal truth tables and .dff markers.
package lang

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

func Parse(src []byte) (Program, error) {
	text := stripComments(string(src))
	stmts := splitStatements(text)
	p := Program{
		Pins:       make(map[string]PinDef),
		Registered: make(map[string]int),
	}
	lineOffsets := lineOffsets(text)
	for _, st := range stmts {
		if strings.TrimSpace(st.text) == "" {
			continue
		}
		line := lineOfOffset(lineOffsets, st.offset+leadingSpace(st.text))
		if err := parseStatement(&p, st.text, line); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseStatement(p *Program, stmt string, line int) error {
	s := strings.TrimSpace(stmt)
	if s == "" {
		return nil
	}
	if hasKeyword(s, "pin") {
		return parsePin(p, s[3:], line)
	}
	if hasKeyword(s, "table") {
		return parseTable(p, s[5:], line)
	}
	if !strings.Contains(s, "=") {
		if base, ok := cutDff(s); ok {
			return parseDff(p, base, line)
		}
		return errors.Errorf("line %d: expected pin declaration, equation, table or .dff marker, got %q", line, s)
	}
	return parseEquation(p, s, line)
}

func hasKeyword(s, kw string) bool {
	if len(s) <= len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return false
	}
	next := s[len(kw)]
	return unicode.IsSpace(rune(next)) || next == '[' || next == '('
}

func cutDff(s string) (string, bool) {
	if len(s) < 4 || !strings.EqualFold(s[len(s)-4:], ".dff") {
		return "", false
	}
	return strings.TrimSpace(s[:len(s)-4]), true
}

func parsePin(p *Program, s string, line int) error {
	// Forms:
	// pin 13 = i0
	// pin 1, 2 = a, !b
	// pin [1..3] = x[0..2]
	// pin [16, 17] = [a0..a1]
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return errors.Errorf("line %d: invalid pin assignment", line)
	}
	pins, err := parsePinList(parts[0])
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	names, err := parseNameList(parts[1], true)
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	if len(pins) != len(names) {
		return errors.Errorf("line %d: pin list length %d != signal list length %d", line, len(pins), len(names))
	}
	for i, pin := range pins {
		n := names[i]
		if prev, ok := p.Pins[n.name]; ok {
			return errors.Errorf("line %d: signal %q already assigned to pin %d on line %d", line, n.name, prev.Pin, prev.Line)
		}
		for other, def := range p.Pins {
			if def.Pin == pin {
				return errors.Errorf("line %d: pin %d already assigned to %q", line, pin, other)
			}
		}
		p.Pins[n.name] = PinDef{Pin: pin, ActiveLow: n.activeLow, Line: line}
	}
	return nil
}

func parseDff(p *Program, s string, line int) error {
	names, err := parseNameList(s, false)
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	for _, n := range names {
		if _, ok := p.Registered[n.name]; !ok {
			p.Registered[n.name] = line
		}
	}
	return nil
}

func parseEquation(p *Program, stmt string, line int) error {
	parts := strings.SplitN(stmt, "=", 2)
	lhs := strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	if lhs == "" || rhs == "" {
		return errors.Errorf("line %d: invalid equation", line)
	}
	if base, ok := cutDff(lhs); ok {
		lhs = base
		if _, seen := p.Registered[lhs]; !seen {
			p.Registered[lhs] = line
		}
	}
	if !isIdent(lhs) {
		return errors.Errorf("line %d: invalid signal name %q", line, lhs)
	}
	lex := newLexer(rhs)
	ps := parser{lex: lex}
	expr, err := ps.parseExpr()
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	if tok := lex.peek(); tok.kind != tokEOF {
		return errors.Errorf("line %d: unexpected token %q", line, tok.text)
	}
	p.Equations = append(p.Equations, Equation{Line: line, Name: lhs, Expr: expr})
	return nil
}

// maxTableInputs bounds the rows a table block allocates.
const maxTableInputs = 24

type tableKind int

const (
	tableFull tableKind = iota
	tableCount
	tableFill
)

func parseTable(p *Program, s string, line int) error {
	// Forms:
	// table(a, b -> y, z) { 00 00  01 10  10 10  11 01 }
	// table(a, b -> y).count { 0 1 1 0 }
	// table(a, b -> y).fill(0) { 11 1 }
	s = strings.TrimSpace(s)
	closing := strings.Index(s, ")")
	if !strings.HasPrefix(s, "(") || closing < 0 {
		return errors.Errorf("line %d: expected (inputs -> outputs) after table", line)
	}
	ins, outs, ok := strings.Cut(s[1:closing], "->")
	if !ok {
		return errors.Errorf("line %d: table header needs inputs -> outputs", line)
	}
	inputs, err := tableNames(ins)
	if err != nil {
		return errors.Wrapf(err, "line %d: table inputs", line)
	}
	outputs, err := tableNames(outs)
	if err != nil {
		return errors.Wrapf(err, "line %d: table outputs", line)
	}
	if len(inputs) > maxTableInputs {
		return errors.Errorf("line %d: table has %d inputs (max %d)", line, len(inputs), maxTableInputs)
	}

	rest := strings.TrimSpace(s[closing+1:])
	kind, fill := tableFull, false
	switch {
	case hasPrefixFold(rest, ".count"):
		kind = tableCount
		rest = strings.TrimSpace(rest[len(".count"):])
	case hasPrefixFold(rest, ".fill"):
		kind = tableFill
		arg := strings.TrimSpace(rest[len(".fill"):])
		end := strings.Index(arg, ")")
		if !strings.HasPrefix(arg, "(") || end < 0 {
			return errors.Errorf("line %d: expected .fill(0) or .fill(1)", line)
		}
		switch strings.TrimSpace(arg[1:end]) {
		case "0":
		case "1":
			fill = true
		default:
			return errors.Errorf("line %d: fill value %q, only 0 or 1 allowed", line, strings.TrimSpace(arg[1:end]))
		}
		rest = strings.TrimSpace(arg[end+1:])
	case strings.HasPrefix(rest, "."):
		return errors.Errorf("line %d: unknown table option %q", line, rest)
	}
	if !strings.HasPrefix(rest, "{") || !strings.HasSuffix(rest, "}") {
		return errors.Errorf("line %d: expected { rows } after table header", line)
	}
	bits, err := parseBits(rest[1 : len(rest)-1])
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	cols, err := tableColumns(kind, len(inputs), len(outputs), bits, fill)
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	p.Blocks = append(p.Blocks, TableBlock{Line: line, Inputs: inputs, Outputs: outputs, Columns: cols})
	return nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func tableNames(s string) ([]string, error) {
	names, err := parseNameList(s, false)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		for _, prev := range out[:i] {
			if prev == n.name {
				return nil, errors.Errorf("%q listed twice", n.name)
			}
		}
		out[i] = n.name
	}
	return out, nil
}

func parseBits(s string) ([]bool, error) {
	var bits []bool
	for _, r := range s {
		switch {
		case r == '0':
			bits = append(bits, false)
		case r == '1':
			bits = append(bits, true)
		case unicode.IsSpace(r):
		default:
			return nil, errors.Errorf("unexpected char %q in table, only 0 or 1 allowed", r)
		}
	}
	return bits, nil
}

// tableColumns splits the body bits of an n-input, m-output table into one
// column per output. A count table lists only output bits, row by row in
// index order. Full and fill tables list input bits then output bits per
// row, in any order; a fill table may leave rows out.
func tableColumns(kind tableKind, n, m int, bits []bool, fill bool) ([][]bool, error) {
	rows := 1 << uint(n)
	cols := make([][]bool, m)
	for k := range cols {
		cols[k] = make([]bool, rows)
	}
	if kind == tableCount {
		if len(bits) != rows*m {
			return nil, errors.Errorf("count table has %d bits, want %d rows of %d", len(bits), rows, m)
		}
		for i, b := range bits {
			cols[i%m][i/m] = b
		}
		return cols, nil
	}

	width := n + m
	if len(bits)%width != 0 {
		return nil, errors.Errorf("table has %d bits, not a whole number of %d-bit rows", len(bits), width)
	}
	if kind == tableFull && len(bits) != rows*width {
		return nil, errors.Errorf("table has %d rows, want %d", len(bits)/width, rows)
	}
	if fill {
		for _, col := range cols {
			for i := range col {
				col[i] = true
			}
		}
	}
	seen := make([]bool, rows)
	for r := 0; r < len(bits); r += width {
		idx := 0
		for _, b := range bits[r : r+n] {
			idx <<= 1
			if b {
				idx |= 1
			}
		}
		if seen[idx] {
			return nil, errors.Errorf("row %0*b listed twice", n, idx)
		}
		seen[idx] = true
		for k := 0; k < m; k++ {
			cols[k][idx] = bits[r+n+k]
		}
	}
	return cols, nil
}

func unbracket(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// splitList splits on commas outside brackets.
func splitList(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func parsePinList(s string) ([]int, error) {
	inner := unbracket(s)
	if inner == "" {
		return nil, errors.New("empty pin list")
	}
	var out []int
	for _, item := range splitList(inner) {
		if lo, hi, ok := strings.Cut(item, ".."); ok {
			a, err := parsePinNumber(lo)
			if err != nil {
				return nil, err
			}
			b, err := parsePinNumber(hi)
			if err != nil {
				return nil, err
			}
			out = append(out, intRange(a, b)...)
			continue
		}
		v, err := parsePinNumber(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePinNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("invalid pin number %q", s)
	}
	return v, nil
}

func intRange(a, b int) []int {
	var out []int
	if a <= b {
		for i := a; i <= b; i++ {
			out = append(out, i)
		}
	} else {
		for i := a; i >= b; i-- {
			out = append(out, i)
		}
	}
	return out
}

type signalName struct {
	name      string
	activeLow bool
}

func parseNameList(s string, allowActiveLow bool) ([]signalName, error) {
	inner := unbracket(s)
	if inner == "" {
		return nil, errors.New("empty signal list")
	}
	var out []signalName
	for _, item := range splitList(inner) {
		activeLow := false
		if strings.HasPrefix(item, "!") {
			if !allowActiveLow {
				return nil, errors.Errorf("unexpected ! in %q", item)
			}
			activeLow = true
			item = strings.TrimSpace(item[1:])
		}
		names, err := expandName(item)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			out = append(out, signalName{name: n, activeLow: activeLow})
		}
	}
	return out, nil
}

// expandName accepts a plain name, x[0..2] or a0..a2.
func expandName(s string) ([]string, error) {
	if open := strings.Index(s, "["); open > 0 && strings.HasSuffix(s, "]") {
		prefix := s[:open]
		lo, hi, ok := strings.Cut(s[open+1:len(s)-1], "..")
		if !ok || !isIdent(prefix) {
			return nil, errors.Errorf("invalid signal range %q", s)
		}
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return nil, errors.Errorf("invalid signal range %q", s)
		}
		var out []string
		for _, i := range intRange(a, b) {
			out = append(out, fmt.Sprintf("%s%d", prefix, i))
		}
		return out, nil
	}
	if start, end, ok := strings.Cut(s, ".."); ok {
		p1, n1, ok1 := splitIdentNumber(strings.TrimSpace(start))
		p2, n2, ok2 := splitIdentNumber(strings.TrimSpace(end))
		if !ok1 || !ok2 || p1 != p2 || !isIdent(p1) {
			return nil, errors.Errorf("range %q must use same prefix with numeric suffix", s)
		}
		var out []string
		for _, i := range intRange(n1, n2) {
			out = append(out, fmt.Sprintf("%s%d", p1, i))
		}
		return out, nil
	}
	if !isIdent(s) {
		return nil, errors.Errorf("invalid signal name %q", s)
	}
	return []string{s}, nil
}

func splitIdentNumber(s string) (string, int, bool) {
	i := len(s)
	for i > 0 && unicode.IsDigit(rune(s[i-1])) {
		i--
	}
	if i == len(s) {
		return "", 0, false
	}
	v, err := strconv.Atoi(s[i:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], v, true
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	switch strings.ToLower(s) {
	case "true", "false", "pin", "table":
		return false
	}
	return true
}

// Lexer for expressions

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokNot
	tokAnd
	tokOr
	tokXor
	tokLParen
	tokRParen
	tokIllegal
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	s string
	i int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

func (l *lexer) peek() token {
	pos := l.i
	tok := l.next()
	l.i = pos
	return tok
}

func (l *lexer) next() token {
	for l.i < len(l.s) && unicode.IsSpace(rune(l.s[l.i])) {
		l.i++
	}
	if l.i >= len(l.s) {
		return token{kind: tokEOF}
	}
	ch := l.s[l.i]
	switch ch {
	case '!':
		l.i++
		return token{kind: tokNot, text: "!"}
	case '&':
		l.i++
		return token{kind: tokAnd, text: "&"}
	case '|':
		l.i++
		return token{kind: tokOr, text: "|"}
	case '#':
		l.i++
		return token{kind: tokOr, text: "#"}
	case '^':
		l.i++
		return token{kind: tokXor, text: "^"}
	case '(':
		l.i++
		return token{kind: tokLParen, text: "("}
	case ')':
		l.i++
		return token{kind: tokRParen, text: ")"}
	}

	if isIdentStart(ch) {
		start := l.i
		l.i++
		for l.i < len(l.s) && isIdentPart(l.s[l.i]) {
			l.i++
		}
		return token{kind: tokIdent, text: l.s[start:l.i]}
	}
	if unicode.IsDigit(rune(ch)) {
		start := l.i
		l.i++
		for l.i < len(l.s) && unicode.IsDigit(rune(l.s[l.i])) {
			l.i++
		}
		return token{kind: tokNumber, text: l.s[start:l.i]}
	}

	l.i++
	return token{kind: tokIllegal, text: string(ch)}
}

func isIdentStart(b byte) bool {
	return unicode.IsLetter(rune(b)) || b == '_'
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || unicode.IsDigit(rune(b))
}

// Parser. Precedence from loosest: | then ^ then & then !.

type parser struct {
	lex *lexer
}

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.lex.peek().kind == tokOr {
		p.lex.next()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = ExprOr{A: left, B: right}
	}
	return left, nil
}

func (p *parser) parseXor() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.lex.peek().kind == tokXor {
		p.lex.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ExprXor{A: left, B: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.lex.peek().kind == tokAnd {
		p.lex.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ExprAnd{A: left, B: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.lex.peek().kind == tokNot {
		p.lex.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ExprNot{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.lex.next()
	switch tok.kind {
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true":
			return ExprConst{Value: true}, nil
		case "false":
			return ExprConst{Value: false}, nil
		}
		return ExprIdent{Name: tok.text}, nil
	case tokNumber:
		switch tok.text {
		case "0":
			return ExprConst{Value: false}, nil
		case "1":
			return ExprConst{Value: true}, nil
		}
		return nil, errors.Errorf("invalid constant %q", tok.text)
	case tokLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.lex.next().kind != tokRParen {
			return nil, errors.New("expected )")
		}
		return x, nil
	case tokEOF:
		return nil, errors.New("unexpected end of expression")
	default:
		return nil, errors.Errorf("unexpected token %q", tok.text)
	}
}

// Helpers

func stripComments(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if i+1 < len(s) && s[i] == '/' && s[i+1] == '*' {
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				if s[i] == '\n' {
					out.WriteByte('\n')
				}
				i++
			}
			if i+1 < len(s) {
				i += 2
			} else {
				i = len(s)
			}
			continue
		}
		if i+1 < len(s) && s[i] == '/' && s[i+1] == '/' {
			i += 2
			for i < len(s) && s[i] != '\n' {
				i++
			}
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

type statement struct {
	text   string
	offset int
}

// splitStatements splits on ';'. A '}' also ends a statement and stays in
// its text.
func splitStatements(s string) []statement {
	var stmts []statement
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ';':
			stmts = append(stmts, statement{text: s[start:i], offset: start})
			start = i + 1
		case '}':
			stmts = append(stmts, statement{text: s[start : i+1], offset: start})
			start = i + 1
		}
	}
	if start < len(s) {
		stmts = append(stmts, statement{text: s[start:], offset: start})
	}
	return stmts
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

func lineOffsets(s string) []int {
	offs := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			offs = append(offs, i+1)
		}
	}
	return offs
}

func lineOfOffset(lines []int, off int) int {
	line := 0
	for _, start := range lines {
		if start > off {
			break
		}
		line++
	}
	return line
}
