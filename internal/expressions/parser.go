package expressions

import (
	"fmt"
	"strconv"
	"strings"
)

// node is a compiled friendly-language expression. Nodes are immutable and
// safe to evaluate concurrently.
type node interface {
	eval(bindings map[string]any) any
}

// listNode evaluates each item independently and yields a sequence.
type listNode struct {
	items []node
}

func (n *listNode) eval(bindings map[string]any) any {
	out := make([]any, len(n.items))
	for i, item := range n.items {
		out[i] = item.eval(bindings)
	}
	return out
}

// comparisonNode resolves both sides and compares them. Equality is
// case-insensitive when both sides are textual; ordering falls back to
// lexicographic comparison when either side is not numeric.
type comparisonNode struct {
	op    string
	left  node
	right node
}

func (n *comparisonNode) eval(bindings map[string]any) any {
	lhs := n.left.eval(bindings)
	rhs := n.right.eval(bindings)

	switch n.op {
	case "==":
		return LooseEqual(lhs, rhs)
	case "!=":
		return !LooseEqual(lhs, rhs)
	}

	lf, lok := ToFloat(lhs)
	rf, rok := ToFloat(rhs)
	if lok && rok {
		switch n.op {
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}

	ls, lok := lhs.(string)
	rs, rok := rhs.(string)
	if lok && rok {
		switch n.op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
	}

	return nil
}

// rangeNode yields a formatted interval token for display and audit.
// Containment testing is the caller's responsibility via comparisons.
type rangeNode struct {
	low  node
	high node
}

func (n *rangeNode) eval(bindings map[string]any) any {
	return fmt.Sprintf("[%v..%v]", n.low.eval(bindings), n.high.eval(bindings))
}

type boolNode struct {
	value bool
}

func (n *boolNode) eval(map[string]any) any {
	return n.value
}

type numberNode struct {
	value float64
}

func (n *numberNode) eval(map[string]any) any {
	return n.value
}

type stringNode struct {
	value string
}

func (n *stringNode) eval(map[string]any) any {
	return n.value
}

// lookupNode resolves a (possibly dotted) variable name through nested
// mappings. A missing segment or a non-mapping intermediate yields nil.
type lookupNode struct {
	path []string
}

func (n *lookupNode) eval(bindings map[string]any) any {
	var current any = bindings
	for _, segment := range n.path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// parser is a recursive-descent parser over the lexed token stream.
type parser struct {
	tokens []token
	pos    int
}

// parseFriendly compiles a friendly expression into a typed node tree.
func parseFriendly(input string) (node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at offset %d", p.peek().text, p.peek().pos)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

// list := comparison ("," comparison)*
func (p *parser) parseList() (node, error) {
	first, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenComma {
		return first, nil
	}

	items := []node{first}
	for p.peek().kind == tokenComma {
		p.next()
		item, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &listNode{items: items}, nil
}

// comparison := range (op range)?
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenOperator {
		return left, nil
	}
	op := p.next().text
	right, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	return &comparisonNode{op: op, left: left, right: right}, nil
}

// range := primary (".." primary)?
func (p *parser) parseRange() (node, error) {
	low, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenRange {
		return low, nil
	}
	p.next()
	high, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &rangeNode{low: low, high: high}, nil
}

// primary := NUMBER | STRING | "true" | "false" | IDENT
func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at offset %d", t.text, t.pos)
		}
		return &numberNode{value: f}, nil
	case tokenString:
		return &stringNode{value: t.text}, nil
	case tokenIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return &boolNode{value: true}, nil
		case "false":
			return &boolNode{value: false}, nil
		}
		return &lookupNode{path: strings.Split(t.text, ".")}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", t.text, t.pos)
	}
}

// LooseEqual compares two resolved values: case-insensitive for two strings,
// numeric for two numbers, deep-printed otherwise.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.EqualFold(as, bs)
		}
	}
	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// ToFloat coerces the numeric types that JSON/YAML decoding and expression
// evaluation produce into float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
