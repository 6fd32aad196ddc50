package scoring

import (
	"math"
	"strings"
)

// Label is the semantic verdict of the classifier for one field.
type Label string

const (
	LabelExact    Label = "EXACT"
	LabelProche   Label = "PROCHE"
	LabelPartiel  Label = "PARTIEL"
	LabelIndirect Label = "INDIRECT"
	LabelAucun    Label = "AUCUN"

	// MaxFieldScore caps a field score.
	MaxFieldScore = 100.0
)

var bonusTable = map[Label]float64{
	LabelExact:    40,
	LabelProche:   28,
	LabelPartiel:  16,
	LabelIndirect: 6,
	LabelAucun:    0,
}

// Labels returns every label, strongest first.
func Labels() []Label {
	return []Label{LabelExact, LabelProche, LabelPartiel, LabelIndirect, LabelAucun}
}

// NormalizeLabel trims and upper-cases s. Anything outside the table,
// including the empty string, becomes AUCUN.
func NormalizeLabel(s string) Label {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := bonusTable[l]; ok {
		return l
	}
	return LabelAucun
}

// Bonus returns the semantic bonus of l. Unknown labels earn nothing.
func Bonus(l Label) float64 {
	return bonusTable[NormalizeLabel(string(l))]
}

// FieldScore combines a lexical base and a label into a score in [0, 100].
func FieldScore(lexical float64, label Label) float64 {
	score := Round2(lexical + Bonus(label))
	return math.Max(0, math.Min(MaxFieldScore, score))
}
