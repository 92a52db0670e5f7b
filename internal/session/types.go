package session

import (
	"fmt"

	"voice-calculator/internal/voice"
)

// Input is one client event, sent as the body of the button routes and as a
// message on the display stream. Type selects the operation when it is not
// implied by the route.
type Input struct {
	Type       string `json:"type,omitempty"`
	Digit      string `json:"digit,omitempty"`
	Operator   string `json:"operator,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Final      bool   `json:"final,omitempty"`
}

// Operation builds the operation described by in.
func (in Input) Operation(d *voice.Dispatcher) (Operation, error) {
	switch in.Type {
	case "digit":
		return Digit(in.Digit)
	case "decimal":
		return Decimal(), nil
	case "operator":
		return SetOperator(in.Operator)
	case "calculate":
		return Calculate(), nil
	case "clear":
		return ClearAll(), nil
	case "clear_entry", "clear-entry":
		return ClearEntry(), nil
	case "voice":
		return Voice(d, in.Transcript, in.Final), nil
	}
	return Operation{}, fmt.Errorf("%w: unknown input type %q", ErrInvalidInput, in.Type)
}

// ParseRequest is the JSON body for POST /parse.
type ParseRequest struct {
	Transcript string `json:"transcript"`
}

// ParseResponse shows what the parser makes of a transcript without touching
// any session.
type ParseResponse struct {
	Transcript string `json:"transcript"`
	voice.Command
	Dispatch bool `json:"dispatch"`
}

// StreamError is sent on the display stream when an input is rejected.
type StreamError struct {
	Error string `json:"error"`
}
