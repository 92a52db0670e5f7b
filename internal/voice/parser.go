// Package voice turns speech transcripts into calculator actions. It holds
// the transcript parser, the command dispatcher and the listener that pulls
// transcripts from a speech recognizer.
package voice

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"voice-calculator/internal/calculator"
)

// Command is what a single transcript asks for.
type Command struct {
	Numbers     []float64           `json:"numbers"`
	Operator    calculator.Operator `json:"operator"`
	Calculation bool                `json:"calculation"`
}

type numberWord struct {
	word  string
	value float64
}

// numberWords is matched in this order; ties on position keep it.
var numberWords = []numberWord{
	{"zero", 0}, {"one", 1}, {"two", 2}, {"three", 3}, {"four", 4},
	{"five", 5}, {"six", 6}, {"seven", 7}, {"eight", 8}, {"nine", 9},
	{"ten", 10}, {"eleven", 11}, {"twelve", 12}, {"thirteen", 13},
	{"fourteen", 14}, {"fifteen", 15}, {"sixteen", 16}, {"seventeen", 17},
	{"eighteen", 18}, {"nineteen", 19}, {"twenty", 20}, {"thirty", 30},
	{"forty", 40}, {"fifty", 50}, {"sixty", 60}, {"seventy", 70},
	{"eighty", 80}, {"ninety", 90}, {"hundred", 100},
}

type operatorRule struct {
	op       calculator.Operator
	keywords []string
}

var operatorKeywords = []operatorRule{
	{calculator.OpAdd, []string{"plus", "add"}},
	{calculator.OpSubtract, []string{"minus", "subtract"}},
	{calculator.OpMultiply, []string{"times", "multiply", "multiplied"}},
	{calculator.OpDivide, []string{"divide", "divided by"}},
	{calculator.OpModulo, []string{"percent", "modulo"}},
}

var operatorSymbols = []operatorRule{
	{calculator.OpAdd, []string{"+"}},
	{calculator.OpSubtract, []string{"-"}},
	{calculator.OpMultiply, []string{"*", "×"}},
	{calculator.OpDivide, []string{"/", "÷"}},
	{calculator.OpModulo, []string{"%"}},
}

var calculationKeywords = []string{"equals", "equal", "calculate", "what is", "what's"}

var (
	digitRun    = regexp.MustCompile(`[0-9]+`)
	digitHyphen = regexp.MustCompile(`[0-9]+-[0-9]+`)
)

// Parse extracts numbers, an operator and the calculation intent from a
// transcript. The transcript is lowercased and trimmed first.
func Parse(transcript string) Command {
	text := normalize(transcript)
	return Command{
		Numbers:     ExtractNumbers(text),
		Operator:    ExtractOperator(text),
		Calculation: HasCalculationIntent(text),
	}
}

func normalize(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

type numberMatch struct {
	value float64
	index int
}

// ExtractNumbers returns the numbers mentioned in text ordered by first
// occurrence, without repeated values.
func ExtractNumbers(text string) []float64 {
	var matches []numberMatch

	for _, run := range digitRun.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(run, 64)
		if err != nil {
			continue
		}
		matches = append(matches, numberMatch{value: v, index: strings.Index(text, run)})
	}

	matches = append(matches, wordMatches(text)...)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].index < matches[j].index
	})

	seen := make(map[float64]struct{}, len(matches))
	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.value]; dup {
			continue
		}
		seen[m.value] = struct{}{}
		numbers = append(numbers, m.value)
	}
	return numbers
}

type span struct{ start, end int }

// wordMatches finds the first occurrence of every number word that is not
// part of a longer number word ("seven" inside "seventeen").
func wordMatches(text string) []numberMatch {
	occurrences := make([][]span, len(numberWords))
	for i, nw := range numberWords {
		occurrences[i] = findAll(text, nw.word)
	}

	var matches []numberMatch
	for i, nw := range numberWords {
		for _, sp := range occurrences[i] {
			if covered(sp, i, occurrences) {
				continue
			}
			matches = append(matches, numberMatch{value: nw.value, index: sp.start})
			break
		}
	}
	return matches
}

func findAll(text, word string) []span {
	var spans []span
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			break
		}
		start := offset + i
		spans = append(spans, span{start: start, end: start + len(word)})
		offset = start + 1
	}
	return spans
}

func covered(sp span, self int, occurrences [][]span) bool {
	for j, spans := range occurrences {
		if j == self {
			continue
		}
		for _, other := range spans {
			if other.end-other.start > sp.end-sp.start && other.start <= sp.start && other.end >= sp.end {
				return true
			}
		}
	}
	return false
}

// ExtractOperator returns the first operator found, keywords before literal
// symbols. A hyphen between digits ("3-4") is not a minus.
func ExtractOperator(text string) calculator.Operator {
	for _, rule := range operatorKeywords {
		if containsAny(text, rule.keywords) {
			return rule.op
		}
	}

	for _, rule := range operatorSymbols {
		if !containsAny(text, rule.keywords) {
			continue
		}
		if rule.op == calculator.OpSubtract && digitHyphen.MatchString(text) {
			continue
		}
		return rule.op
	}
	return calculator.OpNone
}

// HasCalculationIntent reports whether text asks for the result.
func HasCalculationIntent(text string) bool {
	return containsAny(text, calculationKeywords)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
