package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDivideByZero is the only domain error. It never fails an operation:
// the display shows "Error" instead.
var ErrDivideByZero = errors.New("cannot divide by zero")

// resultScale keeps eight decimal places and drops floating point noise.
const resultScale = 1e8

// Apply computes a op b.
func Apply(op Operator, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSubtract:
		return a - b, nil
	case OpMultiply:
		return a * b, nil
	case OpDivide:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	case OpModulo:
		// math.Mod truncates: the sign follows the dividend.
		return math.Mod(a, b), nil
	case OpNone:
	}
	return 0, fmt.Errorf("apply: no operator")
}

// Round rounds x to eight decimal places, halves rounding up.
func Round(x float64) float64 {
	return roundHalfUp(x*resultScale) / resultScale
}

func roundHalfUp(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	return r
}

// ParseNumber reads an operand the way the display stores it. Anything that
// is not a number (for example "Error") yields NaN.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v
		}
		return math.NaN()
	}
	return v
}

// FormatNumber renders x with the shortest round-trip digits. Values outside
// [1e-6, 1e21) use exponent notation such as "1e+21" or "1.5e-7".
func FormatNumber(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		return "0"
	}

	abs := math.Abs(x)
	if abs >= 1e21 || abs < 1e-6 {
		return formatExponent(x)
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatExponent(x float64) string {
	s := strconv.FormatFloat(x, 'e', -1, 64)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}

	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
