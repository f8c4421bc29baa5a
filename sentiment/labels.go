package sentiment

import "fmt"

// Label is a normalized sentiment label.
type Label string

// Labels reported to clients. Neutral never leaves the package: it is
// collapsed into Positive or Negative.
const (
	LabelNegative Label = "NEGATIVE"
	LabelNeutral  Label = "NEUTRAL"
	LabelPositive Label = "POSITIVE"
)

// Score is one raw label score from the model.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

var labelMapping = map[string]Label{
	"LABEL_0":  LabelNegative,
	"LABEL_1":  LabelNeutral,
	"LABEL_2":  LabelPositive,
	"NEGATIVE": LabelNegative,
	"NEUTRAL":  LabelNeutral,
	"POSITIVE": LabelPositive,
	"negative": LabelNegative,
	"neutral":  LabelNeutral,
	"positive": LabelPositive,
}

// Raw label names, in lookup order, for the positive and negative scores
// of a three-class model.
var (
	positiveKeys = []string{"LABEL_2", "POSITIVE", "positive"}
	negativeKeys = []string{"LABEL_0", "NEGATIVE", "negative"}
)

// mapLabel normalizes a raw model label. Unknown labels pass through.
func mapLabel(raw string) Label {
	if l, ok := labelMapping[raw]; ok {
		return l
	}
	return Label(raw)
}

// Postprocess picks the highest-scoring label and normalizes it.
//
// Three-class models can predict neutral. A neutral winner is collapsed:
// the positive and negative raw scores are compared and the larger one
// wins, with its raw score as the confidence. Ties go to negative. The
// reported confidence is therefore lower than the neutral score was.
func Postprocess(scores []Score) (Label, float64, error) {
	if len(scores) == 0 {
		return "", 0, ErrEmptyPrediction
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	label := mapLabel(best.Label)
	if label != LabelNeutral {
		return label, best.Score, nil
	}

	byRaw := make(map[string]float64, len(scores))
	for _, s := range scores {
		byRaw[s.Label] = s.Score
	}
	pos := firstScore(byRaw, positiveKeys)
	neg := firstScore(byRaw, negativeKeys)
	if pos > neg {
		return LabelPositive, pos, nil
	}
	return LabelNegative, neg, nil
}

func firstScore(byRaw map[string]float64, keys []string) float64 {
	for _, k := range keys {
		if v, ok := byRaw[k]; ok {
			return v
		}
	}
	return 0
}

// Validate reports whether l is a label clients may receive.
func (l Label) Validate() error {
	switch l {
	case LabelNegative, LabelPositive:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLabel, string(l))
	}
}
