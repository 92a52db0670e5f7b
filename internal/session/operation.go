package session

import (
	"errors"
	"fmt"

	"voice-calculator/internal/calculator"
	"voice-calculator/internal/voice"
)

// ErrInvalidInput is returned when an operation cannot be built from its
// arguments.
var ErrInvalidInput = errors.New("invalid input")

// Change is what an operation did to a state.
type Change struct {
	Action     string
	Heard      string
	Outcome    calculator.Outcome
	Calculated bool
}

// Operation is one input event for a calculator.
type Operation struct {
	Name  string
	apply func(*calculator.State) Change
}

// Digit types d, which must be a single character 0-9.
func Digit(d string) (Operation, error) {
	if len(d) != 1 || d[0] < '0' || d[0] > '9' {
		return Operation{}, fmt.Errorf("%w: digit %q", ErrInvalidInput, d)
	}
	return Operation{Name: "digit", apply: func(s *calculator.State) Change {
		s.AppendDigit(d)
		return Change{Action: "append_digit"}
	}}, nil
}

func Decimal() Operation {
	return Operation{Name: "decimal", apply: func(s *calculator.State) Change {
		s.AppendDecimal()
		return Change{Action: "append_decimal"}
	}}
}

// SetOperator arms the operator named by symbol ("+", "-", "*", "×", "/",
// "÷" or "%").
func SetOperator(symbol string) (Operation, error) {
	op, err := calculator.ParseOperator(symbol)
	if err != nil {
		return Operation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Operation{Name: "operator", apply: func(s *calculator.State) Change {
		out, ran := s.SetOperator(op)
		return Change{Action: "set_operator", Outcome: out, Calculated: ran}
	}}, nil
}

func Calculate() Operation {
	return Operation{Name: "calculate", apply: func(s *calculator.State) Change {
		out, ran := s.Calculate()
		return Change{Action: "calculate", Outcome: out, Calculated: ran}
	}}
}

func ClearAll() Operation {
	return Operation{Name: "clear", apply: func(s *calculator.State) Change {
		s.ClearAll()
		return Change{Action: "clear"}
	}}
}

func ClearEntry() Operation {
	return Operation{Name: "clear_entry", apply: func(s *calculator.State) Change {
		s.ClearEntry()
		return Change{Action: "clear_entry"}
	}}
}

// Voice dispatches a recognized transcript. A non-final transcript is only
// acted on when it already names an operator.
func Voice(d *voice.Dispatcher, transcript string, final bool) Operation {
	return Operation{Name: "voice", apply: func(s *calculator.State) Change {
		if !voice.ShouldDispatch(transcript, final) {
			return Change{Action: string(voice.ActionNone)}
		}
		res := d.Dispatch(s, transcript)
		return Change{
			Action:     string(res.Action),
			Heard:      res.Heard,
			Outcome:    res.Outcome,
			Calculated: res.Calculated,
		}
	}}
}
