package voice

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
	minCorrectableLength     = 4
)

// PhoneticCorrector snaps misheard words onto the calculator vocabulary
// ("plas" → "plus", "tree" → "three"). Words are first filtered by Double
// Metaphone overlap and then ranked by Jaro-Winkler similarity; without a
// phonetic overlap a stricter similarity threshold applies.
//
// The corrector is read-only after construction and safe for concurrent use.
type PhoneticCorrector struct {
	vocabulary        []vocabEntry
	phoneticThreshold float64
	fuzzyThreshold    float64
}

type vocabEntry struct {
	word  string
	codes map[string]struct{}
}

// PhoneticOption configures a PhoneticCorrector.
type PhoneticOption func(*PhoneticCorrector)

// WithPhoneticThreshold sets the similarity needed when the phonetic codes
// overlap. Default: 0.80.
func WithPhoneticThreshold(threshold float64) PhoneticOption {
	return func(c *PhoneticCorrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the similarity needed without phonetic overlap.
// Default: 0.90.
func WithFuzzyThreshold(threshold float64) PhoneticOption {
	return func(c *PhoneticCorrector) {
		c.fuzzyThreshold = threshold
	}
}

// NewPhoneticCorrector builds a corrector over the number words and the
// command keywords.
func NewPhoneticCorrector(opts ...PhoneticOption) *PhoneticCorrector {
	c := &PhoneticCorrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	for _, w := range vocabularyWords() {
		c.vocabulary = append(c.vocabulary, vocabEntry{word: w, codes: metaphoneCodes(w)})
	}
	return c
}

func vocabularyWords() []string {
	seen := make(map[string]struct{})
	var words []string
	add := func(w string) {
		if strings.IndexFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	for _, nw := range numberWords {
		add(nw.word)
	}
	for _, rule := range operatorKeywords {
		for _, k := range rule.keywords {
			add(k)
		}
	}
	for _, k := range calculationKeywords {
		add(k)
	}
	for _, k := range []string{"clear", "point", "decimal"} {
		add(k)
	}
	return words
}

// Correct rewrites every word of text that is close to, but does not
// contain, a vocabulary word. Short words and words with digits or
// punctuation are kept.
func (c *PhoneticCorrector) Correct(text string) string {
	words := strings.Fields(text)
	changed := false

	for i, w := range words {
		if !correctable(w) || c.known(w) {
			continue
		}
		if best, ok := c.match(w); ok {
			words[i] = best
			changed = true
		}
	}

	if !changed {
		return text
	}
	return strings.Join(words, " ")
}

func correctable(w string) bool {
	if len(w) < minCorrectableLength {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// known reports whether the parser will already find a vocabulary word
// inside w.
func (c *PhoneticCorrector) known(w string) bool {
	for _, v := range c.vocabulary {
		if strings.Contains(w, v.word) {
			return true
		}
	}
	return false
}

func (c *PhoneticCorrector) match(w string) (string, bool) {
	codes := metaphoneCodes(w)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, v := range c.vocabulary {
		score := matchr.JaroWinkler(w, v.word, false)
		if overlaps(codes, v.codes) {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = v.word, score, true
			}
			continue
		}
		if !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore {
			best, bestScore = v.word, score
		}
	}
	return best, best != ""
}

func metaphoneCodes(w string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(w)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
