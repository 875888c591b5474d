// Package expr parses the expression mini-language used in select lists,
// filter keys, GROUP BY and ORDER BY items into queryir.Expr trees.
//
// Grammar:
//
//	expr      = call | literal | attribute | "(" expr ")"
//	call      = NAME ":" ( "(" [ expr { "," expr } ] ")" | shorthand )
//	shorthand = expr { "," expr }     at top level
//	          | expr                  inside an argument list
//	literal   = 'text' | "text" | number | TRUE | FALSE | NULL
//	attribute = name | alias "." name
//
// A quote inside a string literal is escaped by doubling it. Whitespace
// outside quotes is ignored. Full-text calls also accept a colon form,
// MATCH_BOOLEAN:col1,col2:query text, whose query runs to the end of input.
package expr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
)

// DefaultMaxDepth bounds call and parenthesis nesting.
const DefaultMaxDepth = 32

var (
	namePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	attrPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// Parse parses text with DefaultMaxDepth.
func Parse(text string) (queryir.Expr, error) {
	return ParseWithLimit(text, DefaultMaxDepth)
}

// ParseWithLimit parses text, failing with queryir.ErrTooDeep when calls
// or parentheses nest deeper than maxDepth.
func ParseWithLimit(text string, maxDepth int) (queryir.Expr, error) {
	p := &parser{src: text, maxDepth: maxDepth}

	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty expression")
	}
	e, err := p.parseExpr(true)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		if p.peek() == ')' {
			return nil, p.errorf("unbalanced ')' at offset %d", p.pos)
		}
		return nil, p.errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return e, nil
}

// IsMatch reports whether a function name is a full-text match.
func IsMatch(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "MATCH_")
}

type parser struct {
	src      string
	pos      int
	depth    int
	maxDepth int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return queryir.Errorf(queryir.KindSyntax, p.src, format, args...)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return queryir.Errorf(queryir.KindTooDeep, p.src, "expression nests deeper than %d", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// parseExpr parses one expression. topLevel is false inside an argument
// list, where a shorthand call takes a single argument.
func (p *parser) parseExpr(topLevel bool) (queryir.Expr, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of expression")
	}

	switch c := p.peek(); c {
	case '(':
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		p.pos++
		inner, err := p.parseExpr(topLevel)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("missing ')'")
		}
		p.pos++
		return inner, nil
	case '\'', '"':
		s, err := p.parseString(c)
		if err != nil {
			return nil, err
		}
		return queryir.Literal{Value: ir.IRString(s)}, nil
	case ')':
		return nil, p.errorf("unbalanced ')' at offset %d", p.pos)
	case ',':
		return nil, p.errorf("empty argument at offset %d", p.pos)
	}

	start := p.pos
	token := p.scanToken()
	if !p.eof() && p.peek() == ':' {
		if !namePattern.MatchString(token) {
			return nil, p.errorf("invalid function name %q", token)
		}
		p.pos++
		return p.parseCall(strings.ToUpper(token), topLevel)
	}
	if token == "" {
		return nil, p.errorf("unexpected %q at offset %d", p.src[start:start+1], start)
	}
	return classify(token, p)
}

// scanToken reads a bare word up to a delimiter.
func (p *parser) scanToken() string {
	start := p.pos
	for !p.eof() {
		switch p.peek() {
		case ',', '(', ')', ':', ' ', '\t', '\n', '\r', '\'', '"':
			return p.src[start:p.pos]
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func classify(token string, p *parser) (queryir.Expr, error) {
	switch strings.ToUpper(token) {
	case "TRUE":
		return queryir.Literal{Value: ir.IRBool(true)}, nil
	case "FALSE":
		return queryir.Literal{Value: ir.IRBool(false)}, nil
	case "NULL":
		return queryir.Literal{Value: ir.IRNull{}}, nil
	}
	if numberPattern.MatchString(token) {
		if !strings.Contains(token, ".") {
			if n, err := strconv.ParseInt(token, 10, 64); err == nil {
				return queryir.Literal{Value: ir.IRInt(n)}, nil
			}
		}
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", token)
		}
		return queryir.Literal{Value: ir.IRFloat(f)}, nil
	}
	if attrPattern.MatchString(token) {
		return queryir.AttributeRef{Path: token}, nil
	}
	return nil, p.errorf("unexpected token %q", token)
}

func (p *parser) parseString(quote byte) (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		if c != quote {
			b.WriteByte(c)
			continue
		}
		if !p.eof() && p.peek() == quote {
			b.WriteByte(quote)
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return "", p.errorf("unterminated string literal")
}

func (p *parser) parseCall(name string, topLevel bool) (queryir.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.skipSpace()
	if IsMatch(name) {
		return p.parseMatch(name)
	}

	if !p.eof() && p.peek() == '(' {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return queryir.FunctionCall{Name: name, Args: args}, nil
	}

	if p.eof() {
		return nil, p.errorf("function %s has no arguments", name)
	}
	first, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}
	args := []queryir.Expr{first}
	for topLevel {
		p.skipSpace()
		if p.eof() || p.peek() != ',' {
			break
		}
		p.pos++
		next, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	return queryir.FunctionCall{Name: name, Args: args}, nil
}

// parseArgList parses "(a, b, ...)"; "()" is an empty list.
func (p *parser) parseArgList() ([]queryir.Expr, error) {
	p.pos++ // (
	p.skipSpace()
	if !p.eof() && p.peek() == ')' {
		p.pos++
		return []queryir.Expr{}, nil
	}

	var args []queryir.Expr
	for {
		arg, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("missing ')'")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, p.errorf("unexpected %q at offset %d", p.src[p.pos:p.pos+1], p.pos)
		}
	}
}

// parseMatch parses a full-text call. The result's last argument is
// always the query text as a string literal; the others are columns.
func (p *parser) parseMatch(name string) (queryir.Expr, error) {
	if !p.eof() && p.peek() == '(' {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, p.errorf("%s needs columns and a query", name)
		}
		for _, col := range args[:len(args)-1] {
			if _, ok := col.(queryir.AttributeRef); !ok {
				return nil, p.errorf("%s columns must be attributes", name)
			}
		}
		if ref, ok := args[len(args)-1].(queryir.AttributeRef); ok {
			args[len(args)-1] = queryir.Literal{Value: ir.IRString(ref.Path)}
		}
		return queryir.FunctionCall{Name: name, Args: args}, nil
	}

	rest := p.src[p.pos:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return nil, p.errorf("%s needs columns and a query", name)
	}

	var args []queryir.Expr
	for _, col := range strings.Split(rest[:colon], ",") {
		col = strings.TrimSpace(col)
		if !attrPattern.MatchString(col) {
			return nil, p.errorf("%s: invalid column %q", name, col)
		}
		args = append(args, queryir.AttributeRef{Path: col})
	}
	args = append(args, queryir.Literal{Value: ir.IRString(rest[colon+1:])})
	p.pos = len(p.src)
	return queryir.FunctionCall{Name: name, Args: args}, nil
}

// Attributes returns the attribute paths referenced by e, in order of
// appearance, without duplicates.
func Attributes(e queryir.Expr) []string {
	var out []string
	seen := map[string]bool{}
	queryir.Walk(e, func(n queryir.Expr) {
		if ref, ok := n.(queryir.AttributeRef); ok && !seen[ref.Path] {
			seen[ref.Path] = true
			out = append(out, ref.Path)
		}
	})
	return out
}
