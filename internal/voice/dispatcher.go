package voice

import (
	"strings"

	"voice-calculator/internal/calculator"
)

// Action names what a dispatched transcript did to the calculator.
type Action string

const (
	ActionNone          Action = "none"
	ActionClear         Action = "clear"
	ActionExpression    Action = "expression"
	ActionCalculate     Action = "calculate"
	ActionAppendNumber  Action = "append_number"
	ActionSetOperator   Action = "set_operator"
	ActionAppendDecimal Action = "append_decimal"
)

// Result describes one dispatch. Outcome is set when a calculation ran.
type Result struct {
	Heard      string
	Command    Command
	Action     Action
	Outcome    calculator.Outcome
	Calculated bool
}

// Corrector rewrites a normalized transcript before it is parsed.
type Corrector interface {
	Correct(text string) string
}

// Dispatcher applies transcripts to a calculator. It keeps no state of its
// own and is safe for concurrent use with distinct states.
type Dispatcher struct {
	corrector Corrector
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCorrector runs c over every transcript before parsing.
func WithCorrector(c Corrector) DispatcherOption {
	return func(d *Dispatcher) {
		d.corrector = c
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch parses transcript and applies the first matching rule to s.
// Transcripts that match no rule leave s untouched.
func (d *Dispatcher) Dispatch(s *calculator.State, transcript string) Result {
	text := normalize(transcript)
	if d.corrector != nil {
		text = d.corrector.Correct(text)
	}

	res := Result{Heard: text, Action: ActionNone}

	if strings.Contains(text, "clear") {
		s.ClearAll()
		res.Action = ActionClear
		return res
	}

	cmd := Command{
		Numbers:     ExtractNumbers(text),
		Operator:    ExtractOperator(text),
		Calculation: HasCalculationIntent(text),
	}
	res.Command = cmd

	hasOp := cmd.Operator != calculator.OpNone
	n := len(cmd.Numbers)

	switch {
	case n >= 2 && hasOp:
		// A complete expression; numbers past the second are ignored.
		s.ClearAll()
		s.Previous = calculator.FormatNumber(cmd.Numbers[0])
		s.Operator = cmd.Operator
		s.Current = calculator.FormatNumber(cmd.Numbers[1])
		res.Action = ActionExpression
		res.Outcome, res.Calculated = s.Calculate()

	case cmd.Calculation && hasOp && s.Previous != "" && s.Current != "0":
		res.Action = ActionCalculate
		res.Outcome, res.Calculated = s.Calculate()

	case n == 1 && !hasOp && !cmd.Calculation:
		s.AppendNumber(calculator.FormatNumber(cmd.Numbers[0]))
		res.Action = ActionAppendNumber

	case hasOp && n == 0 && !cmd.Calculation:
		res.Action = ActionSetOperator
		res.Outcome, res.Calculated = s.SetOperator(cmd.Operator)

	case cmd.Calculation && hasOp && s.Previous != "" && n == 0:
		res.Action = ActionCalculate
		res.Outcome, res.Calculated = s.Calculate()

	case hasOp:
		res.Action = ActionSetOperator
		res.Outcome, res.Calculated = s.SetOperator(cmd.Operator)

	case cmd.Calculation:
		res.Action = ActionCalculate
		res.Outcome, res.Calculated = s.Calculate()

	case strings.Contains(text, "point") || strings.Contains(text, "decimal"):
		s.AppendDecimal()
		res.Action = ActionAppendDecimal
	}

	return res
}

// ShouldDispatch reports whether a transcript can be acted on now: once the
// recognizer marks it final, or earlier when it already names an operator.
func ShouldDispatch(transcript string, final bool) bool {
	text := normalize(transcript)
	if text == "" {
		return false
	}
	return final || ExtractOperator(text) != calculator.OpNone
}
