package calculator

import (
	"encoding/json"
	"fmt"
)

// Operator is a pending binary operation. The zero value means no operator.
type Operator int

const (
	OpNone Operator = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

// Symbol returns the ASCII tag of the operator ("+", "-", "*", "/", "%").
func (o Operator) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	default:
		return ""
	}
}

// Glyph returns the symbol shown in the expression line.
func (o Operator) Glyph() string {
	switch o {
	case OpMultiply:
		return "×"
	case OpDivide:
		return "÷"
	default:
		return o.Symbol()
	}
}

// Name is the metric/log label of the operator.
func (o Operator) Name() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpModulo:
		return "modulo"
	default:
		return "none"
	}
}

func (o Operator) String() string {
	return o.Symbol()
}

// ParseOperator accepts the ASCII tags as well as the display glyphs × and ÷.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "+":
		return OpAdd, nil
	case "-":
		return OpSubtract, nil
	case "*", "×":
		return OpMultiply, nil
	case "/", "÷":
		return OpDivide, nil
	case "%":
		return OpModulo, nil
	}
	return OpNone, fmt.Errorf("unknown operator %q", s)
}

// MarshalJSON encodes the operator as its symbol, or null when none is set.
func (o Operator) MarshalJSON() ([]byte, error) {
	if o == OpNone {
		return []byte("null"), nil
	}
	return json.Marshal(o.Symbol())
}

func (o *Operator) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OpNone
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*o = OpNone
		return nil
	}

	op, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}
