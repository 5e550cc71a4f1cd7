package lang

// Program is a parsed source file.
type Program struct {
	Pins       map[string]PinDef // signal name → pin
	Equations  []Equation
	Blocks     []TableBlock
	Registered map[string]int // signal name → line of its .dff marker
}

// PinDef binds a signal name to a device pin. An active-low signal is true
// when the pin is low.
type PinDef struct {
	Pin       int
	ActiveLow bool
	Line      int
}

type Equation struct {
	Line int
	Name string
	Expr Expr
}

// TableBlock is a literal truth table. Columns[k] holds the value of
// Outputs[k] for every row, the first input being the most significant bit
// of the row index.
type TableBlock struct {
	Line    int
	Inputs  []string
	Outputs []string
	Columns [][]bool
}

// Expr AST

type Expr interface{ isExpr() }

type ExprIdent struct{ Name string }

func (ExprIdent) isExpr() {}

type ExprNot struct{ X Expr }

func (ExprNot) isExpr() {}

type ExprAnd struct{ A, B Expr }

func (ExprAnd) isExpr() {}

type ExprOr struct{ A, B Expr }

func (ExprOr) isExpr() {}

type ExprXor struct{ A, B Expr }

func (ExprXor) isExpr() {}

type ExprConst struct{ Value bool }

func (ExprConst) isExpr() {}
