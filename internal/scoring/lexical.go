// Package scoring computes the deterministic part of a recipe evaluation: the
// lexical similarity between a reference field and a candidate field, and the
// bonus attached to each semantic label returned by the classifier.
package scoring

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLexical is the ceiling of LexicalBase.
	MaxLexical = 60.0

	charWeight    = 0.40
	overlapWeight = 0.60
)

// Normalize lowercases s, strips diacritics, replaces every non alphanumeric
// rune with a space and collapses runs of whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Levenshtein returns the rune edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// CharSimilarity is 1 - distance / longest length, floored at 0.
// Two empty strings are identical.
func CharSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return math.Max(0, 1-float64(Levenshtein(a, b))/float64(longest))
}

// Tokens splits a normalized string on whitespace and drops one-rune tokens.
func Tokens(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// tokenTolerance is ceil(0.2 * n) in integer arithmetic.
func tokenTolerance(n int) int {
	return (n + 4) / 5
}

// TokenOverlap returns the fraction of reference tokens that have an equal or
// near-equal counterpart among the candidate tokens.
func TokenOverlap(refTokens, candTokens []string) float64 {
	if len(refTokens) == 0 {
		return 0
	}

	matched := 0
	for _, rt := range refTokens {
		tol := tokenTolerance(len([]rune(rt)))
		for _, ct := range candTokens {
			if rt == ct || Levenshtein(rt, ct) <= tol {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(refTokens))
}

// LexicalBase scores candidate against reference in [0, MaxLexical].
// A blank candidate scores 0.
func LexicalBase(reference, candidate string) float64 {
	if strings.TrimSpace(candidate) == "" {
		return 0
	}

	ref := Normalize(reference)
	cand := Normalize(candidate)

	char := CharSimilarity(ref, cand)
	overlap := TokenOverlap(Tokens(ref), Tokens(cand))

	combined := char*charWeight + overlap*overlapWeight
	return math.Min(MaxLexical, Round2(combined*MaxLexical))
}

// Round2 rounds x to two decimals, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Mean returns the two-decimal mean of values, or 0 when there are none.
func Mean(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Round2(sum / float64(len(values)))
}
