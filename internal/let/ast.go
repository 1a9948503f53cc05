package let

// NodeKind tags a LET expression AST node's shape.
type NodeKind int

// Node kinds.
const (
	NLiteral NodeKind = iota
	NVariable
	NFunction
	NBinary
	NUnary
)

// Node is one LET expression AST node, immutable after parse. ID is a
// stable, parse-order-assigned identifier used as the literal-cache
// key for constant subexpressions.
type Node struct {
	Kind NodeKind
	ID   int

	Lit  float64 // NLiteral
	Name string  // NVariable: variable name; NFunction: function name
	Op   byte    // NBinary: '+' '-' '*' '/' '^'; NUnary: '-'
	Args []*Node
}

// WhereBinding is one `name = expr` clause of a LET statement's WHERE
// list.
type WhereBinding struct {
	Name string
	Expr *Node
}

// Statement is a fully parsed `LET (out...) = FN(in...) = expr, ... WHERE ...;`.
type Statement struct {
	Outputs []string
	Inputs  []string
	Results []*Node
	Where   []WhereBinding
}

// IsConstant reports whether every leaf of n is a literal, i.e. n can
// be constant-folded without reference to any input or WHERE-bound
// variable.
func (n *Node) IsConstant() bool {
	switch n.Kind {
	case NLiteral:
		return true
	case NVariable:
		return false
	default:
		for _, a := range n.Args {
			if !a.IsConstant() {
				return false
			}
		}
		return true
	}
}

// collectVars appends every NVariable name referenced transitively
// under n to out.
func collectVars(n *Node, out map[string]bool) {
	switch n.Kind {
	case NVariable:
		out[n.Name] = true
	default:
		for _, a := range n.Args {
			collectVars(a, out)
		}
	}
}
