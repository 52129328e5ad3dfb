package heuristic

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/antihoax/internal/model"
)

// Confidence parameters for the keyword scoring formula
const (
	baseConfidence = 0.5
	stepConfidence = 0.1
	maxConfidence  = 0.9
)

// DefaultHoaxIndicators are phrases typical of Indonesian-language hoax chain messages
var DefaultHoaxIndicators = []string{
	"BREAKING!!!", "SHARE SEBELUM DIHAPUS", "JANGAN PERCAYA PEMERINTAH",
	"RAHASIA YANG DISEMBUNYIKAN", "DOKTER TIDAK MAU ANDA TAHU",
	"VAKSIN BERBAHAYA", "CHIP 5G", "KONSPIRASI GLOBAL",
}

// DefaultFactIndicators are phrases that usually accompany sourced reporting
var DefaultFactIndicators = []string{
	"menurut penelitian", "berdasarkan data", "sumber resmi",
	"kementerian", "universitas", "jurnal ilmiah",
}

// Classifier scores text against fixed keyword lists.
// It has no semantic understanding: ties and weak signal fall to needs_review.
type Classifier struct {
	hoaxIndicators []string
	factIndicators []string
}

// NewClassifier creates a classifier with the default indicator lists
func NewClassifier() *Classifier {
	return NewClassifierWithIndicators(DefaultHoaxIndicators, DefaultFactIndicators)
}

// NewClassifierWithIndicators creates a classifier with custom indicator lists
func NewClassifierWithIndicators(hoax, fact []string) *Classifier {
	return &Classifier{
		hoaxIndicators: append([]string(nil), hoax...),
		factIndicators: append([]string(nil), fact...),
	}
}

// Classify scores the text and derives a verdict
func (c *Classifier) Classify(text string) model.Verdict {
	lower := strings.ToLower(text)

	hoaxScore := 0
	var redFlags []model.RedFlag
	for _, indicator := range c.hoaxIndicators {
		needle := strings.ToLower(indicator)
		if pos := strings.Index(lower, needle); pos >= 0 {
			hoaxScore++
			redFlags = append(redFlags, model.RedFlag{
				Type:      "hoax_indicator",
				Indicator: indicator,
				Position:  pos,
			})
		}
	}

	factScore := 0
	for _, indicator := range c.factIndicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			factScore++
		}
	}

	flag, confidence, reasoning := Score(hoaxScore, factScore)

	return model.NewHeuristicVerdict(model.HeuristicVerdictFields{
		IsHoax:      flag,
		Confidence:  confidence,
		Explanation: explain(flag, redFlags, reasoning),
		Reasoning:   reasoning,
		RedFlags:    redFlags,
	})
}

// Score turns indicator counts into a flag, a confidence and a reasoning line
func Score(hoaxScore, factScore int) (model.HoaxFlag, float64, string) {
	var (
		flag       model.HoaxFlag
		confidence float64
		reasoning  string
	)

	switch {
	case hoaxScore > factScore:
		flag = model.HoaxTrue
		confidence = math.Min(baseConfidence+stepConfidence*float64(hoaxScore-factScore), maxConfidence)
		reasoning = fmt.Sprintf("Detected %d hoax indicator(s) and %d fact indicator(s).", hoaxScore, factScore)
	case factScore > hoaxScore:
		flag = model.HoaxFalse
		confidence = math.Min(baseConfidence+stepConfidence*float64(factScore-hoaxScore), maxConfidence)
		reasoning = fmt.Sprintf("Detected %d fact indicator(s) and %d hoax indicator(s).", factScore, hoaxScore)
	default:
		flag = model.HoaxUnknown
		confidence = baseConfidence
		reasoning = fmt.Sprintf("Detected an equal number of hoax and fact indicators (%d).", hoaxScore)
	}

	return flag, math.Min(confidence, 1.0), reasoning
}

func explain(flag model.HoaxFlag, redFlags []model.RedFlag, reasoning string) string {
	label := "uncertain"
	switch flag {
	case model.HoaxTrue:
		label = "hoax"
	case model.HoaxFalse:
		label = "fact"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on keyword analysis, this text is preliminarily classified as %s. %s", label, reasoning)

	if len(redFlags) > 0 {
		names := make([]string, len(redFlags))
		for i, rf := range redFlags {
			names[i] = rf.Indicator
		}
		fmt.Fprintf(&b, " Potential red flags include: %s.", strings.Join(names, ", "))
	}

	switch flag {
	case model.HoaxTrue:
		b.WriteString(" This suggests the text may contain misleading or false information. Further verification is recommended.")
	case model.HoaxFalse:
		b.WriteString(" This suggests the text is likely based on factual information, but cross-referencing sources is always a good practice.")
	default:
		b.WriteString(" The nature of this text is unclear based on keyword analysis alone. Proceed with caution and seek further verification from reliable sources.")
	}

	return b.String()
}
