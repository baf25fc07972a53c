package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopWords is the fixed list dropped before token-overlap scoring.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are as at
		be because been before being below between both but by
		can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how
		i if in into is it its itself just me more most my myself
		no nor not now of off on once only or other our ours ourselves out over own
		same she should so some such than that the their theirs them themselves then
		there these they this those through to too under until up very
		was we were what when where which while who whom why will with would
		you your yours yourself yourselves
		im ive id ill dont didnt wont cant isnt wasnt get got going gonna want
	`) {
		stopWords[w] = struct{}{}
	}
}

// Tokenize case-folds text, splits on non-word characters, and drops stop
// words and single-character tokens. Word characters are letters, digits and '_'.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// termVectors builds term-frequency vectors for a and b over their union vocabulary.
func termVectors(a, b []string) ([]float64, []float64) {
	index := make(map[string]int, len(a)+len(b))
	for _, t := range a {
		if _, ok := index[t]; !ok {
			index[t] = len(index)
		}
	}
	for _, t := range b {
		if _, ok := index[t]; !ok {
			index[t] = len(index)
		}
	}

	va := make([]float64, len(index))
	vb := make([]float64, len(index))
	for _, t := range a {
		va[index[t]]++
	}
	for _, t := range b {
		vb[index[t]]++
	}
	return va, vb
}
