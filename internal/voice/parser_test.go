package voice

import (
	"slices"
	"testing"

	"voice-calculator/internal/calculator"
)

func TestParse(t *testing.T) {
	tests := []struct {
		transcript  string
		numbers     []float64
		operator    calculator.Operator
		calculation bool
	}{
		{transcript: "seven plus five", numbers: []float64{7, 5}, operator: calculator.OpAdd},
		{transcript: "What is twelve divided by four", numbers: []float64{12, 4}, operator: calculator.OpDivide, calculation: true},
		{transcript: "  25 TIMES 4  ", numbers: []float64{25, 4}, operator: calculator.OpMultiply},
		{transcript: "plus", numbers: []float64{}, operator: calculator.OpAdd},
		{transcript: "equals", numbers: []float64{}, calculation: true},
		{transcript: "what's nine modulo two", numbers: []float64{9, 2}, operator: calculator.OpModulo, calculation: true},
		{transcript: "ten percent", numbers: []float64{10}, operator: calculator.OpModulo},
		{transcript: "subtract three from eight", numbers: []float64{3, 8}, operator: calculator.OpSubtract},
		{transcript: "multiplied by six", numbers: []float64{6}, operator: calculator.OpMultiply},
		{transcript: "calculate", numbers: []float64{}, calculation: true},
		{transcript: "hello there", numbers: []float64{}},
	}

	for _, tc := range tests {
		t.Run(tc.transcript, func(t *testing.T) {
			got := Parse(tc.transcript)
			if !slices.Equal(got.Numbers, tc.numbers) {
				t.Fatalf("numbers: expected %v, got %v", tc.numbers, got.Numbers)
			}
			if got.Operator != tc.operator {
				t.Fatalf("operator: expected %q, got %q", tc.operator, got.Operator)
			}
			if got.Calculation != tc.calculation {
				t.Fatalf("calculation: expected %t, got %t", tc.calculation, got.Calculation)
			}
		})
	}
}

func TestExtractNumbersDeduplicatesByValue(t *testing.T) {
	got := ExtractNumbers("five plus 5 plus five")
	if !slices.Equal(got, []float64{5}) {
		t.Fatalf("expected [5], got %v", got)
	}

	got = ExtractNumbers("3 and three and 4")
	if !slices.Equal(got, []float64{3, 4}) {
		t.Fatalf("expected [3 4], got %v", got)
	}
}

func TestExtractNumbersOrdersByFirstOccurrence(t *testing.T) {
	got := ExtractNumbers("twenty minus 8")
	if !slices.Equal(got, []float64{20, 8}) {
		t.Fatalf("expected [20 8], got %v", got)
	}

	got = ExtractNumbers("100 divided by hundred")
	if !slices.Equal(got, []float64{100}) {
		t.Fatalf("expected [100], got %v", got)
	}
}

func TestExtractNumbersPrefersLongerNumberWords(t *testing.T) {
	tests := []struct {
		text string
		want []float64
	}{
		{text: "seventeen plus two", want: []float64{17, 2}},
		{text: "sixty minus six", want: []float64{60, 6}},
		{text: "eighteen times eighty", want: []float64{18, 80}},
		{text: "nineteen", want: []float64{19}},
		{text: "fourteen and four", want: []float64{14, 4}},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := ExtractNumbers(tc.text); !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExtractOperatorPriority(t *testing.T) {
	tests := []struct {
		text string
		want calculator.Operator
	}{
		{text: "plus minus", want: calculator.OpAdd},
		{text: "minus times", want: calculator.OpSubtract},
		{text: "divide percent", want: calculator.OpDivide},
		{text: "3 + 4", want: calculator.OpAdd},
		{text: "3 - 4", want: calculator.OpSubtract},
		{text: "3 × 4", want: calculator.OpMultiply},
		{text: "3 ÷ 4", want: calculator.OpDivide},
		{text: "3 / 4", want: calculator.OpDivide},
		{text: "3 % 4", want: calculator.OpModulo},
		{text: "nothing here", want: calculator.OpNone},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := ExtractOperator(tc.text); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractOperatorHyphenBetweenDigits(t *testing.T) {
	if got := ExtractOperator("3-4"); got != calculator.OpNone {
		t.Fatalf("expected no operator for a digit range, got %q", got)
	}

	// Spaces around the hyphen bypass the guard.
	if got := ExtractOperator("3 - 4"); got != calculator.OpSubtract {
		t.Fatalf("expected subtraction, got %q", got)
	}
}
