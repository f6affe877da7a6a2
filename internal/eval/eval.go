// Package eval implements a small arithmetic expression evaluator used by
// the balance evaluation engine. The grammar covers numeric literals, named
// variables, the operators + - * / ^, comparisons, a ternary conditional
// (cond ? a : b), parentheses, and a fixed function set: exp, ln, sin, cos
// (unary) and max, min (binary). Evaluation is a two-phase shunting-yard:
// infix tokens are reduced to postfix respecting precedence, then the
// postfix sequence is reduced on a value stack. There is no short-circuiting
// and no implicit rounding.
package eval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidNumber       = errors.New("invalid number in expression")
	ErrInvalidCharacter    = errors.New("invalid character in expression")
	ErrUndefinedVariable   = errors.New("undefined variable")
	ErrInvalidExpression   = errors.New("invalid expression")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrUnsupportedFunction = errors.New("unsupported function")
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokVariable
	tokOperator
	tokFunction
	tokLeftParen
	tokRightParen
	tokComma
)

type token struct {
	kind tokenKind
	num  float64
	text string // variable/function name or operator symbol
}

// opNeg is the internal symbol for unary minus.
const opNeg = "neg"

// opSelect is the internal symbol for the completed ternary conditional; it
// consumes three operands during postfix reduction.
const opSelect = ":"

// Parser holds a tokenized expression and a per-call variable binding.
type Parser struct {
	tokens []token
	vars   map[string]float64
}

// Parse tokenizes input in a single left-to-right scan.
func Parse(input string) (*Parser, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens, vars: make(map[string]float64)}, nil
}

// Bind sets the value substituted for a named variable during Evaluate.
func (p *Parser) Bind(name string, value float64) {
	p.vars[name] = value
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++

		case c >= '0' && c <= '9' || c == '.':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			num, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, input[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: num})
			i = j

		case isIdentStart(c):
			j := i + 1
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			name := input[i:j]
			if j < len(input) && input[j] == '(' {
				tokens = append(tokens, token{kind: tokFunction, text: name})
			} else {
				tokens = append(tokens, token{kind: tokVariable, text: name})
			}
			i = j

		case c == '(':
			tokens = append(tokens, token{kind: tokLeftParen})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokRightParen})
			i++

		case c == ',':
			tokens = append(tokens, token{kind: tokComma})
			i++

		case strings.ContainsRune("+-*/^?:<>=!", rune(c)):
			op, n, err := scanOperator(input[i:], tokens)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokOperator, text: op})
			i += n

		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, string(c))
		}
	}
	return tokens, nil
}

// scanOperator reads one operator, handling the two-character comparisons
// and classifying '-' as unary when it cannot be a binary subtraction.
func scanOperator(rest string, prev []token) (string, int, error) {
	if len(rest) >= 2 {
		switch rest[:2] {
		case "<=", ">=", "==", "!=":
			return rest[:2], 2, nil
		}
	}
	switch rest[0] {
	case '=', '!':
		// Only valid as part of a two-character comparison.
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidCharacter, string(rest[0]))
	case '-':
		if unaryPosition(prev) {
			return opNeg, 1, nil
		}
	}
	return rest[:1], 1, nil
}

// unaryPosition reports whether a '-' at the current point negates its
// operand rather than subtracting: at the start of the expression or after
// an operator, an opening parenthesis, or an argument separator.
func unaryPosition(prev []token) bool {
	if len(prev) == 0 {
		return true
	}
	switch prev[len(prev)-1].kind {
	case tokOperator, tokLeftParen, tokComma, tokFunction:
		return true
	}
	return false
}

func precedence(op string) int {
	switch op {
	case "?", opSelect:
		return 1
	case "<", "<=", ">", ">=", "==", "!=":
		return 2
	case "+", "-":
		return 3
	case "*", "/":
		return 4
	case opNeg:
		return 5
	case "^":
		return 6
	default:
		return 0
	}
}

func rightAssociative(op string) bool {
	return op == "?" || op == opSelect || op == opNeg
}

// toPostfix converts the token stream to postfix order. The ternary is
// handled by pushing '?' as a low-precedence operator; the matching ':'
// discharges everything back to the '?', replaces it, and later reduces
// three operands at once.
func (p *Parser) toPostfix() ([]token, error) {
	var out []token
	var ops []token

	popTop := func() token {
		t := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		return t
	}

	for _, tok := range p.tokens {
		switch tok.kind {
		case tokNumber, tokVariable:
			out = append(out, tok)

		case tokFunction:
			ops = append(ops, tok)

		case tokOperator:
			if tok.text == opSelect {
				// Discharge the true-branch, then consume the pending '?'.
				found := false
				for len(ops) > 0 {
					top := ops[len(ops)-1]
					if top.kind == tokOperator && top.text == "?" {
						popTop()
						found = true
						break
					}
					if top.kind == tokLeftParen {
						break
					}
					out = append(out, popTop())
				}
				if !found {
					return nil, fmt.Errorf("%w: ':' without matching '?'", ErrInvalidExpression)
				}
				ops = append(ops, token{kind: tokOperator, text: opSelect})
				continue
			}
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.kind != tokOperator {
					break
				}
				if rightAssociative(tok.text) {
					if precedence(top.text) <= precedence(tok.text) {
						break
					}
				} else if precedence(top.text) < precedence(tok.text) {
					break
				}
				out = append(out, popTop())
			}
			ops = append(ops, tok)

		case tokLeftParen:
			ops = append(ops, tok)

		case tokRightParen:
			matched := false
			for len(ops) > 0 {
				top := popTop()
				if top.kind == tokLeftParen {
					matched = true
					break
				}
				out = append(out, top)
			}
			if !matched {
				return nil, fmt.Errorf("%w: unmatched ')'", ErrInvalidExpression)
			}
			if len(ops) > 0 && ops[len(ops)-1].kind == tokFunction {
				out = append(out, popTop())
			}

		case tokComma:
			matched := false
			for len(ops) > 0 {
				if ops[len(ops)-1].kind == tokLeftParen {
					matched = true
					break
				}
				out = append(out, popTop())
			}
			if !matched {
				return nil, fmt.Errorf("%w: ',' outside function call", ErrInvalidExpression)
			}
		}
	}

	for len(ops) > 0 {
		top := popTop()
		if top.kind == tokLeftParen {
			return nil, fmt.Errorf("%w: unmatched '('", ErrInvalidExpression)
		}
		if top.kind == tokOperator && top.text == "?" {
			return nil, fmt.Errorf("%w: '?' without ':'", ErrInvalidExpression)
		}
		out = append(out, top)
	}
	return out, nil
}

func functionArity(name string) (int, error) {
	switch name {
	case "exp", "ln", "sin", "cos":
		return 1, nil
	case "max", "min":
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFunction, name)
	}
}

// Evaluate reduces the expression against the current bindings. All branches
// are evaluated eagerly; only the ternary's selection decides which value is
// kept.
func (p *Parser) Evaluate() (float64, error) {
	postfix, err := p.toPostfix()
	if err != nil {
		return 0, err
	}

	var stack []float64
	pop := func() (float64, error) {
		if len(stack) == 0 {
			return 0, ErrInvalidExpression
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for _, tok := range postfix {
		switch tok.kind {
		case tokNumber:
			stack = append(stack, tok.num)

		case tokVariable:
			v, ok := p.vars[tok.text]
			if !ok {
				return 0, fmt.Errorf("%w: %q", ErrUndefinedVariable, tok.text)
			}
			stack = append(stack, v)

		case tokOperator:
			v, err := applyOperator(tok.text, pop)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)

		case tokFunction:
			v, err := applyFunction(tok.text, pop)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)

		default:
			return 0, ErrInvalidExpression
		}
	}

	if len(stack) != 1 {
		return 0, ErrInvalidExpression
	}
	return stack[0], nil
}

func applyOperator(op string, pop func() (float64, error)) (float64, error) {
	if op == opNeg {
		a, err := pop()
		if err != nil {
			return 0, err
		}
		return -a, nil
	}
	if op == opSelect {
		c, err := pop()
		if err != nil {
			return 0, err
		}
		b, err := pop()
		if err != nil {
			return 0, err
		}
		cond, err := pop()
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return b, nil
		}
		return c, nil
	}

	b, err := pop()
	if err != nil {
		return 0, err
	}
	a, err := pop()
	if err != nil {
		return 0, err
	}
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		return a / b, nil
	case "^":
		return math.Pow(a, b), nil
	case "<":
		return boolVal(a < b), nil
	case "<=":
		return boolVal(a <= b), nil
	case ">":
		return boolVal(a > b), nil
	case ">=":
		return boolVal(a >= b), nil
	case "==":
		return boolVal(a == b), nil
	case "!=":
		return boolVal(a != b), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
}

func applyFunction(name string, pop func() (float64, error)) (float64, error) {
	arity, err := functionArity(name)
	if err != nil {
		return 0, err
	}
	args := make([]float64, arity)
	for i := arity - 1; i >= 0; i-- {
		v, err := pop()
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch name {
	case "exp":
		return math.Exp(args[0]), nil
	case "ln":
		return math.Log(args[0]), nil
	case "sin":
		return math.Sin(args[0]), nil
	case "cos":
		return math.Cos(args[0]), nil
	case "max":
		return math.Max(args[0], args[1]), nil
	case "min":
		return math.Min(args[0], args[1]), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFunction, name)
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
