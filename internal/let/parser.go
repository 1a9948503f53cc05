package let

import (
	"github.com/albanforth/jitforth/internal/signalx"
)

// Parse lexes and parses src into a Statement:
//
//	let       := 'LET' paren_vars '=' 'FN' paren_vars '=' expr_list where* ';'?
//	expr_list := expr (',' expr)*
//	expr      := add
//	add       := mul  (('+'|'-') mul)*
//	mul       := pow  (('*'|'/') pow)*
//	pow       := factor ('^' pow)?                -- right-assoc
//	factor    := NUM | VAR | '-' factor | '(' expr ')' | FUNC '(' expr (',' expr)? ')'
//	where     := 'WHERE' VAR '=' expr (',' VAR '=' expr)*
//
// Raises signalx.MalformedToken on any grammar violation, and a WHERE
// dependency cycle is rejected via a DFS tri-colour check before
// WhereTopoOrder is usable.
func Parse(src string) *Statement {
	p := &parser{toks: lex(src)}
	stmt := p.parseLet()
	checkWhereCycles(stmt.Where)
	return stmt
}

type parser struct {
	toks   []tok
	pos    int
	nextID int
}

func (p *parser) cur() tok { return p.toks[p.pos] }

func (p *parser) advance() tok {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokKind, who string) tok {
	if p.cur().kind != k {
		signalx.Raise(signalx.MalformedToken, "LET: expected %s", who)
	}
	return p.advance()
}

func (p *parser) parseLet() *Statement {
	p.expect(tokLet, "LET")
	outputs := p.parseParenVars()
	p.expectOp('=')
	p.expect(tokFn, "FN")
	inputs := p.parseParenVars()
	p.expectOp('=')
	results := p.parseExprList()

	var where []WhereBinding
	for p.cur().kind == tokWhere {
		p.advance()
		where = append(where, p.parseWhereBindings()...)
	}
	if p.cur().kind == tokSemicolon {
		p.advance()
	}
	if p.cur().kind != tokEOF {
		signalx.Raise(signalx.MalformedToken, "LET: unexpected trailing input")
	}

	return &Statement{Outputs: outputs, Inputs: inputs, Results: results, Where: where}
}

func (p *parser) parseParenVars() []string {
	p.expect(tokLParen, "'('")
	var names []string
	if p.cur().kind == tokVar {
		names = append(names, p.advance().name)
		for p.cur().kind == tokComma {
			p.advance()
			names = append(names, p.expect(tokVar, "variable name").name)
		}
	}
	p.expect(tokRParen, "')'")
	return names
}

func (p *parser) parseExprList() []*Node {
	list := []*Node{p.parseExpr()}
	for p.cur().kind == tokComma {
		p.advance()
		list = append(list, p.parseExpr())
	}
	return list
}

func (p *parser) parseWhereBindings() []WhereBinding {
	var list []WhereBinding
	for {
		name := p.expect(tokVar, "WHERE variable").name
		p.expectOp('=')
		list = append(list, WhereBinding{Name: name, Expr: p.parseExpr()})
		if p.cur().kind != tokComma {
			break
		}
		p.advance()
	}
	return list
}

func (p *parser) expectOp(op byte) {
	t := p.cur()
	if t.kind != tokOp || t.op != op {
		signalx.Raise(signalx.MalformedToken, "LET: expected %q", string(op))
	}
	p.advance()
}

func (p *parser) parseExpr() *Node { return p.parseAdd() }

func (p *parser) parseAdd() *Node {
	n := p.parseMul()
	for p.cur().kind == tokOp && (p.cur().op == '+' || p.cur().op == '-') {
		op := p.advance().op
		rhs := p.parseMul()
		n = p.node(NBinary, func(nd *Node) { nd.Op = op; nd.Args = []*Node{n, rhs} })
	}
	return n
}

func (p *parser) parseMul() *Node {
	n := p.parsePow()
	for p.cur().kind == tokOp && (p.cur().op == '*' || p.cur().op == '/') {
		op := p.advance().op
		rhs := p.parsePow()
		n = p.node(NBinary, func(nd *Node) { nd.Op = op; nd.Args = []*Node{n, rhs} })
	}
	return n
}

// parsePow is right-associative: a^b^c == a^(b^c).
func (p *parser) parsePow() *Node {
	n := p.parseFactor()
	if p.cur().kind == tokOp && p.cur().op == '^' {
		p.advance()
		rhs := p.parsePow()
		n = p.node(NBinary, func(nd *Node) { nd.Op = '^'; nd.Args = []*Node{n, rhs} })
	}
	return n
}

func (p *parser) parseFactor() *Node {
	t := p.cur()
	switch {
	case t.kind == tokNum:
		p.advance()
		return p.node(NLiteral, func(nd *Node) { nd.Lit = t.num })
	case t.kind == tokVar:
		p.advance()
		return p.node(NVariable, func(nd *Node) { nd.Name = t.name })
	case t.kind == tokOp && t.op == '-':
		p.advance()
		child := p.parseFactor()
		return p.node(NUnary, func(nd *Node) { nd.Op = '-'; nd.Args = []*Node{child} })
	case t.kind == tokLParen:
		p.advance()
		n := p.parseExpr()
		p.expect(tokRParen, "')'")
		return n
	case t.kind == tokFunc:
		p.advance()
		p.expect(tokLParen, "'('")
		arg1 := p.parseExpr()
		args := []*Node{arg1}
		if p.cur().kind == tokComma {
			p.advance()
			args = append(args, p.parseExpr())
		}
		p.expect(tokRParen, "')'")
		return p.node(NFunction, func(nd *Node) { nd.Name = t.name; nd.Args = args })
	default:
		signalx.Raise(signalx.MalformedToken, "LET: expected an expression")
		panic("unreachable")
	}
}

func (p *parser) node(kind NodeKind, fill func(*Node)) *Node {
	nd := &Node{Kind: kind, ID: p.nextID}
	p.nextID++
	fill(nd)
	return nd
}

// checkWhereCycles runs a DFS tri-colour cycle check over the WHERE
// dependency graph: a clause `x = f(...)` that references another
// clause's name induces an edge x -> that clause. Any cycle is a parse
// error (signalx.MalformedToken).
func checkWhereCycles(where []WhereBinding) {
	byName := make(map[string]*WhereBinding, len(where))
	for i := range where {
		byName[where[i].Name] = &where[i]
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(where))

	var visit func(name string)
	visit = func(name string) {
		switch color[name] {
		case black:
			return
		case gray:
			signalx.Raise(signalx.MalformedToken, "LET: WHERE clauses form a cycle at %q", name)
		}
		color[name] = gray
		if b, ok := byName[name]; ok {
			refs := map[string]bool{}
			collectVars(b.Expr, refs)
			for ref := range refs {
				if _, isWhere := byName[ref]; isWhere {
					visit(ref)
				}
			}
		}
		color[name] = black
	}

	for _, b := range where {
		visit(b.Name)
	}
}

// WhereTopoOrder returns where's bindings reordered so that every
// binding appears after the bindings it depends on — the order
// Compile must emit them in. Assumes checkWhereCycles has already
// passed (Parse always runs it).
func WhereTopoOrder(where []WhereBinding) []WhereBinding {
	byName := make(map[string]*WhereBinding, len(where))
	for i := range where {
		byName[where[i].Name] = &where[i]
	}
	visited := map[string]bool{}
	var order []WhereBinding

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		b, ok := byName[name]
		if !ok {
			return
		}
		refs := map[string]bool{}
		collectVars(b.Expr, refs)
		for ref := range refs {
			if _, isWhere := byName[ref]; isWhere {
				visit(ref)
			}
		}
		order = append(order, *b)
	}

	for _, b := range where {
		visit(b.Name)
	}
	return order
}
