// Package expr implements a small sandboxed arithmetic language used for
// free-form score fusion and for combining objective-term values.
//
// The language supports float literals, the binary operators + - * / ^,
// unary minus, parentheses, indexed access into a single input vector via
// targets[i], search variables named w1, w2, ... / p1, p2, ... bound by the
// caller, and a fixed set of math functions. There is no assignment and no
// way to reach host state, so user-supplied formulas cannot escape the
// evaluator.
package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/scorefuse/scorefuse/schema"
)

// Program is a compiled expression, safe for concurrent evaluation.
type Program struct {
	src      string
	root     node
	maxIndex int      // highest targets[i] index referenced, -1 if none
	vars     []string // variable names in first-appearance order
}

// Compile parses src into a Program. Parse failures wrap schema.ErrExpression
// and include the offending position.
func Compile(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", schema.ErrExpression)
	}
	p := &parser{src: src}
	p.next()
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %q at position %d in %q", schema.ErrExpression, p.tok.text, p.tok.pos, src)
	}
	return &Program{src: src, root: root, maxIndex: maxIndex(root), vars: collectVars(root)}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.src }

// MaxIndex returns the highest targets index referenced, or -1 when the
// expression uses no targets. Callers use this to validate arity up front.
func (p *Program) MaxIndex() int { return p.maxIndex }

// Vars returns the search variables the expression references, in first
// appearance order. Empty for expressions built only from targets, literals
// and functions.
func (p *Program) Vars() []string { return p.vars }

// Eval evaluates a variable-free program against the given targets vector.
func (p *Program) Eval(targets []float64) (float64, error) {
	return p.EvalWith(targets, nil)
}

// EvalWith evaluates the program with every referenced variable bound.
func (p *Program) EvalWith(targets []float64, vars map[string]float64) (float64, error) {
	if p.maxIndex >= len(targets) {
		return 0, fmt.Errorf("%w: %q references targets[%d] but only %d values are available",
			schema.ErrExpression, p.src, p.maxIndex, len(targets))
	}
	for _, name := range p.vars {
		if _, ok := vars[name]; !ok {
			return 0, fmt.Errorf("%w: %q references unbound variable %q",
				schema.ErrExpression, p.src, name)
		}
	}
	return p.root.eval(targets, vars), nil
}

// AST nodes. Index bounds and variable bindings are checked once in EvalWith,
// so node evaluation cannot fail.
type node interface {
	eval(targets []float64, vars map[string]float64) float64
}

type literalNode float64

func (n literalNode) eval([]float64, map[string]float64) float64 { return float64(n) }

type targetNode int

func (n targetNode) eval(targets []float64, _ map[string]float64) float64 { return targets[n] }

type varNode string

func (n varNode) eval(_ []float64, vars map[string]float64) float64 { return vars[string(n)] }

type unaryNode struct {
	op    rune
	child node
}

func (n unaryNode) eval(targets []float64, vars map[string]float64) float64 {
	v := n.child.eval(targets, vars)
	if n.op == '-' {
		return -v
	}
	return v
}

type binaryNode struct {
	op          rune
	left, right node
}

func (n binaryNode) eval(targets []float64, vars map[string]float64) float64 {
	l := n.left.eval(targets, vars)
	r := n.right.eval(targets, vars)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		return l / r // IEEE semantics: x/0 is Inf or NaN
	default: // '^'
		return math.Pow(l, r)
	}
}

type callNode struct {
	name string
	fn   func(args []float64) float64
	args []node
}

func (n callNode) eval(targets []float64, vars map[string]float64) float64 {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(targets, vars)
	}
	return n.fn(args)
}

// builtins maps function names to their arity and implementation.
var builtins = map[string]struct {
	arity int
	fn    func(args []float64) float64
}{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"log1p": {1, func(a []float64) float64 { return math.Log1p(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
}

// collectVars walks the tree and returns variable names in first-appearance
// order, deduplicated.
func collectVars(n node) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(node)
	walk = func(n node) {
		switch v := n.(type) {
		case varNode:
			if !seen[string(v)] {
				seen[string(v)] = true
				names = append(names, string(v))
			}
		case unaryNode:
			walk(v.child)
		case binaryNode:
			walk(v.left)
			walk(v.right)
		case callNode:
			for _, a := range v.args {
				walk(a)
			}
		}
	}
	walk(n)
	return names
}

func maxIndex(n node) int {
	switch v := n.(type) {
	case targetNode:
		return int(v)
	case unaryNode:
		return maxIndex(v.child)
	case binaryNode:
		return max(maxIndex(v.left), maxIndex(v.right))
	case callNode:
		m := -1
		for _, a := range v.args {
			m = max(m, maxIndex(a))
		}
		return m
	default:
		return -1
	}
}

// Lexer.

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOp     // + - * / ^
	tokenLParen // (
	tokenRParen // )
	tokenLBrack // [
	tokenRBrack // ]
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	src string
	pos int
	tok token
}

func (p *parser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokenEOF, pos: start}
		return
	}
	c := p.src[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' ||
			p.src[p.pos] == 'e' || p.src[p.pos] == 'E' ||
			((p.src[p.pos] == '+' || p.src[p.pos] == '-') && p.pos > start && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'))) {
			p.pos++
		}
		p.tok = token{kind: tokenNumber, text: p.src[start:p.pos], pos: start}
	case isAlpha(c):
		for p.pos < len(p.src) && (isAlpha(p.src[p.pos]) || isDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
		p.tok = token{kind: tokenIdent, text: p.src[start:p.pos], pos: start}
	default:
		p.pos++
		switch c {
		case '+', '-', '*', '/', '^':
			p.tok = token{kind: tokenOp, text: string(c), pos: start}
		case '(':
			p.tok = token{kind: tokenLParen, text: "(", pos: start}
		case ')':
			p.tok = token{kind: tokenRParen, text: ")", pos: start}
		case '[':
			p.tok = token{kind: tokenLBrack, text: "[", pos: start}
		case ']':
			p.tok = token{kind: tokenRBrack, text: "]", pos: start}
		case ',':
			p.tok = token{kind: tokenComma, text: ",", pos: start}
		default:
			p.tok = token{kind: tokenEOF, text: string(c), pos: start}
			// Mark as a lex error by keeping the text; parser reports it.
			p.tok.kind = -1
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

// isVarName reports whether name is a search variable: w or p followed by
// digits, e.g. w1 or p2. Anything else stays an unknown identifier so typos
// like lgo(x) fail at compile time instead of becoming silent zeros.
func isVarName(name string) bool {
	if len(name) < 2 || (name[0] != 'w' && name[0] != 'p') {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isDigit(name[i]) {
			return false
		}
	}
	return true
}

func (p *parser) errorf(format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s at position %d in %q", schema.ErrExpression, detail, p.tok.pos, p.src)
}

// Parser. Standard precedence: additive < multiplicative < unary < power,
// with ^ binding right-associatively.

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := rune(p.tok.text[0])
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := rune(p.tok.text[0])
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.kind == tokenOp && (p.tok.text == "-" || p.tok.text == "+") {
		op := rune(p.tok.text[0])
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, child: child}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokenOp && p.tok.text == "^" {
		p.next()
		// Right-associative, and the exponent may carry a unary sign.
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: '^', left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	switch p.tok.kind {
	case tokenNumber:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.tok.text)
		}
		p.next()
		return literalNode(v), nil

	case tokenIdent:
		name := p.tok.text
		p.next()
		if name == "targets" {
			return p.parseTargetIndex()
		}
		if _, ok := builtins[name]; ok || p.tok.kind == tokenLParen {
			return p.parseCall(name)
		}
		if !isVarName(name) {
			return nil, p.errorf("unknown identifier %q", name)
		}
		return varNode(name), nil

	case tokenLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokenRParen {
			return nil, p.errorf("expected closing parenthesis")
		}
		p.next()
		return inner, nil

	case tokenEOF:
		return nil, p.errorf("unexpected end of expression")

	default:
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
}

func (p *parser) parseTargetIndex() (node, error) {
	if p.tok.kind != tokenLBrack {
		return nil, p.errorf("expected '[' after targets")
	}
	p.next()
	if p.tok.kind != tokenNumber {
		return nil, p.errorf("expected integer index")
	}
	idx, err := strconv.Atoi(p.tok.text)
	if err != nil || idx < 0 {
		return nil, p.errorf("bad targets index %q", p.tok.text)
	}
	p.next()
	if p.tok.kind != tokenRBrack {
		return nil, p.errorf("expected ']' after index")
	}
	p.next()
	return targetNode(idx), nil
}

func (p *parser) parseCall(name string) (node, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, p.errorf("unknown identifier %q", name)
	}
	if p.tok.kind != tokenLParen {
		return nil, p.errorf("expected '(' after %q", name)
	}
	p.next()
	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.tok.kind == tokenComma {
			p.next()
			continue
		}
		break
	}
	if p.tok.kind != tokenRParen {
		return nil, p.errorf("expected ')' to close %q call", name)
	}
	p.next()
	if len(args) != fn.arity {
		return nil, p.errorf("%s takes %d argument(s), got %d", name, fn.arity, len(args))
	}
	return callNode{name: name, fn: fn.fn, args: args}, nil
}
