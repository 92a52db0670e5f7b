package calculator

import "strings"

// ErrorDisplay is what the display shows after a failed calculation.
const ErrorDisplay = "Error"

// State is the calculator held by one session. The zero value is not ready
// for use; call New.
type State struct {
	Current   string   `json:"current"`
	Previous  string   `json:"previous"`
	Operator  Operator `json:"operator"`
	ResetNext bool     `json:"reset_next"`
}

// Snapshot is what a display shows for a state.
type Snapshot struct {
	Display    string `json:"display"`
	Expression string `json:"expression"`
}

// Outcome is the result of a calculation that ran.
type Outcome struct {
	Operator Operator
	Operands [2]float64
	Result   string
	Err      error
}

// New returns a cleared calculator.
func New() State {
	return State{Current: "0"}
}

// Pending reports whether an operator is waiting for its second operand.
func (s *State) Pending() bool {
	return s.Operator != OpNone
}

// Snapshot returns the display line and the expression line.
func (s *State) Snapshot() Snapshot {
	return Snapshot{Display: s.Current, Expression: s.Expression()}
}

// Expression is "<previous> <glyph>" while an operator is pending.
func (s *State) Expression() string {
	if s.Previous == "" || s.Operator == OpNone {
		return ""
	}
	return s.Previous + " " + s.Operator.Glyph()
}

func (s *State) takeReset() {
	if s.ResetNext {
		s.Current = "0"
		s.ResetNext = false
	}
}

// AppendDigit types a single digit. Anything other than "0".."9" is ignored.
func (s *State) AppendDigit(d string) {
	if len(d) != 1 || d[0] < '0' || d[0] > '9' {
		return
	}
	s.AppendNumber(d)
}

// AppendNumber types a whole digit sequence: it replaces a lone "0" or a
// display awaiting reset, and appends otherwise.
func (s *State) AppendNumber(digits string) {
	if digits == "" {
		return
	}
	s.takeReset()

	if s.Current == "0" {
		s.Current = digits
		return
	}
	s.Current += digits
}

// AppendDecimal adds a decimal point unless the input already has one.
func (s *State) AppendDecimal() {
	s.takeReset()

	if !strings.Contains(s.Current, ".") {
		s.Current += "."
	}
}

// SetOperator arms op. A pending operator is evaluated first when a second
// operand has been typed, so "2 + 3 +" shows 5.
func (s *State) SetOperator(op Operator) (Outcome, bool) {
	var (
		out Outcome
		ran bool
	)
	if s.Operator != OpNone && !s.ResetNext {
		out, ran = s.Calculate()
	}

	s.Previous = s.Current
	s.Operator = op
	s.ResetNext = true
	return out, ran
}

// Calculate evaluates the pending expression. It is a no-op without an
// operator or a previous operand.
func (s *State) Calculate() (Outcome, bool) {
	if s.Operator == OpNone || s.Previous == "" {
		return Outcome{}, false
	}

	a := ParseNumber(s.Previous)
	b := ParseNumber(s.Current)
	out := Outcome{Operator: s.Operator, Operands: [2]float64{a, b}}

	v, err := Apply(s.Operator, a, b)
	if err != nil {
		out.Err = err
		out.Result = ErrorDisplay
	} else {
		out.Result = FormatNumber(Round(v))
	}

	s.Current = out.Result
	s.Previous = ""
	s.Operator = OpNone
	s.ResetNext = true
	return out, true
}

// ClearAll resets every field.
func (s *State) ClearAll() {
	*s = New()
}

// ClearEntry resets the current input only.
func (s *State) ClearEntry() {
	s.Current = "0"
}
