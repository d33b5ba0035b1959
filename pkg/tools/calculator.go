package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// calculatorChars is the full set of characters an expression may use.
// Anything else (letters, underscores, commas) is rejected before the
// parser ever sees the input.
const calculatorChars = "0123456789+-*/.() "

// CalculatorTool evaluates arithmetic expressions.
type CalculatorTool struct{}

// NewCalculatorTool creates the calculator tool.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) GetName() string { return "calculator" }

func (t *CalculatorTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "calculator",
		Description: "Perform a mathematical calculation. Supports basic arithmetic operations.",
		Parameters: []ToolParameter{
			{
				Name:        "expression",
				Type:        "string",
				Description: "Mathematical expression to evaluate (e.g. '2 + 2', '10 * 5', '100 / 4').",
				Required:    true,
			},
		},
		AllowInSandbox: true,
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	expression := stringParam(params, "expression", "")

	for _, c := range expression {
		if !strings.ContainsRune(calculatorChars, c) {
			return NewErrorResult("Expression contains invalid characters"), nil
		}
	}

	value, err := evalExpression(expression)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("Calculation error: %v", err)), nil
	}

	return NewSuccessResult(
		strconv.FormatFloat(value, 'f', -1, 64),
		map[string]any{"expression": expression, "result": value},
	), nil
}

// ============================================================================
// EXPRESSION EVALUATOR
// Recursive descent over: + - * / // ** parentheses and unary signs.
// Precedence low to high: additive, multiplicative, unary, power.
// ============================================================================

type exprParser struct {
	input string
	pos   int
}

func evalExpression(expression string) (float64, error) {
	p := &exprParser{input: expression}
	value, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q", p.input[p.pos])
	}
	return value, nil
}

func (p *exprParser) parseAdditive() (float64, error) {
	value, err := p.parseMultiplicative()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('+'):
			rhs, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			value += rhs
		case p.accept('-'):
			rhs, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseMultiplicative() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.peek('*') && !p.peekAt(1, '*'):
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case p.peek('/') && p.peekAt(1, '/'):
			p.pos += 2
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value = math.Floor(value / rhs)
		case p.peek('/'):
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpaces()
	if p.accept('-') {
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	if p.accept('+') {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.peek('*') && p.peekAt(1, '*') {
		p.pos += 2
		// Right associative; the exponent may carry its own sign.
		exponent, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.accept('(') {
		value, err := p.parseAdditive()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		if p.pos < len(p.input) {
			return 0, fmt.Errorf("unexpected character %q", p.input[p.pos])
		}
		return 0, fmt.Errorf("unexpected end of expression")
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek(c byte) bool {
	return p.pos < len(p.input) && p.input[p.pos] == c
}

func (p *exprParser) peekAt(offset int, c byte) bool {
	return p.pos+offset < len(p.input) && p.input[p.pos+offset] == c
}

func (p *exprParser) accept(c byte) bool {
	if p.peek(c) {
		p.pos++
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
