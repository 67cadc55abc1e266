package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"homehub/internal/models"
)

var (
	ErrMalformedCondition  = errors.New("malformed condition")
	ErrMissingAttribute    = errors.New("attribute not present in device state")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrTypeMismatch        = errors.New("incompatible types in comparison")
)

// Condition is a parsed rule expression. Conditions are parsed once at
// registration time so malformed expressions never reach the pipeline.
type Condition struct {
	Attribute string
	Operator  string
	Literal   models.AttrValue
}

// ParseCondition splits an expression of the form
// "<attribute> <operator> <value>" into its typed form. The value is
// coerced to a number when it is plain digits with at most one dot;
// negative numbers and exponent notation are not recognized and compare
// as strings.
func ParseCondition(expr string) (Condition, error) {
	tokens := strings.Fields(expr)
	if len(tokens) != 3 {
		return Condition{}, fmt.Errorf("%w: want 3 tokens, got %d in %q", ErrMalformedCondition, len(tokens), expr)
	}
	op := tokens[1]
	switch op {
	case "<", ">", "=", "<=", ">=":
	default:
		return Condition{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	return Condition{
		Attribute: tokens[0],
		Operator:  op,
		Literal:   coerceLiteral(tokens[2]),
	}, nil
}

// Evaluate applies the condition to a device's attribute mapping.
func (c Condition) Evaluate(attrs models.Attributes) (bool, error) {
	actual, ok := attrs[c.Attribute]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMissingAttribute, c.Attribute)
	}
	return compare(actual, c.Operator, c.Literal)
}

// Evaluate parses and evaluates in one step. Registration-time callers
// should prefer ParseCondition so they can reject bad expressions early.
func Evaluate(expr string, attrs models.Attributes) (bool, error) {
	cond, err := ParseCondition(expr)
	if err != nil {
		return false, err
	}
	return cond.Evaluate(attrs)
}

func coerceLiteral(tok string) models.AttrValue {
	if !isNumeral(tok) {
		return models.StringValue(tok)
	}
	if strings.Contains(tok, ".") {
		f, err := strconv.ParseFloat(tok, 64)
		if err == nil {
			return models.FloatValue(f)
		}
		return models.StringValue(tok)
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err == nil {
		return models.IntValue(i)
	}
	return models.StringValue(tok)
}

// isNumeral reports whether tok is a non-negative decimal numeral: one or
// more digits with at most one dot anywhere.
func isNumeral(tok string) bool {
	digits := 0
	dots := 0
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func compare(actual models.AttrValue, op string, expected models.AttrValue) (bool, error) {
	if a, ok := actual.Numeric(); ok {
		e, ok := expected.Numeric()
		if !ok {
			return false, typeMismatch(actual, op, expected)
		}
		return ordered(a, op, e), nil
	}
	if actual.Kind == models.AttrString && expected.Kind == models.AttrString {
		return orderedString(actual.Str, op, expected.Str), nil
	}
	if actual.Kind == models.AttrBool && expected.Kind == models.AttrBool {
		if op != "=" {
			return false, typeMismatch(actual, op, expected)
		}
		return actual.Bool == expected.Bool, nil
	}
	return false, typeMismatch(actual, op, expected)
}

func typeMismatch(actual models.AttrValue, op string, expected models.AttrValue) error {
	return fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, actual.Kind, op, expected.Kind)
}

func ordered(a float64, op string, b float64) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "=":
		return a == b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

func orderedString(a, op, b string) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "=":
		return a == b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}
