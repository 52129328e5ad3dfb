package model

import (
	"encoding/json"
	"math"
)

// Provider identifies which classification path produced a verdict
type Provider string

const (
	ProviderAI        Provider = "ai"
	ProviderHeuristic Provider = "heuristic"
)

// VerdictKind discriminates the verdict variants
type VerdictKind string

const (
	KindAI        VerdictKind = "ai"        // Parsed model output
	KindHeuristic VerdictKind = "heuristic" // Keyword fallback
	KindError     VerdictKind = "error"     // Analysis could not be performed
)

// Status is the user-facing classification label
type Status string

const (
	StatusHoax        Status = "hoax"
	StatusFact        Status = "fact"
	StatusNeedsReview Status = "needs_review"
)

// Well-known categories
const (
	CategoryError           = "Error"
	CategoryValidationError = "Validation Error"
	CategoryFetchError      = "Fetch Error"
	CategoryProviderError   = "AI Provider Error"
	CategoryFallback        = "Fallback Analysis"
	CategoryServiceInfo     = "Service Info"
)

// HoaxFlag is a tri-state hoax assessment
type HoaxFlag int

const (
	HoaxUnknown HoaxFlag = iota
	HoaxTrue
	HoaxFalse
)

// HoaxFlagFromBool converts an optional boolean into a HoaxFlag
func HoaxFlagFromBool(b *bool) HoaxFlag {
	if b == nil {
		return HoaxUnknown
	}
	if *b {
		return HoaxTrue
	}
	return HoaxFalse
}

// Status derives the classification label. This is the only place the mapping lives.
func (f HoaxFlag) Status() Status {
	switch f {
	case HoaxTrue:
		return StatusHoax
	case HoaxFalse:
		return StatusFact
	default:
		return StatusNeedsReview
	}
}

// MarshalJSON encodes the flag as true, false or null
func (f HoaxFlag) MarshalJSON() ([]byte, error) {
	switch f {
	case HoaxTrue:
		return []byte("true"), nil
	case HoaxFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes true, false or null
func (f *HoaxFlag) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = HoaxFlagFromBool(b)
	return nil
}

// RedFlag is a matched hoax indicator recorded as evidence
type RedFlag struct {
	Type      string `json:"type"`
	Indicator string `json:"indicator"`
	Position  int    `json:"position"` // Byte offset in the lower-cased text
}

// Verdict is the normalized outcome of one classification.
// Construct it with NewAIVerdict, NewHeuristicVerdict or NewErrorVerdict.
type Verdict struct {
	Kind         VerdictKind `json:"kind"`
	Provider     Provider    `json:"provider"`
	IsHoax       HoaxFlag    `json:"is_hoax"`
	Confidence   float64     `json:"confidence"`
	Summary      string      `json:"summary"`
	Indicators   []string    `json:"indicators"`
	Category     string      `json:"category"`
	ErrorMessage string      `json:"error_message,omitempty"`

	// Heuristic only
	RedFlags  []RedFlag `json:"red_flags,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`

	// Set when the heuristic ran because the AI path failed
	FallbackReason string `json:"fallback_reason,omitempty"`

	// AI only, stripped before reaching callers unless explicitly exposed
	RawResponse string `json:"raw_ai_response,omitempty"`
}

// Status derives the label from IsHoax
func (v Verdict) Status() Status {
	return v.IsHoax.Status()
}

// Failed reports whether the verdict represents a failed analysis.
// Any error verdict with a message counts, so validation and fetch
// rejections also produce success=false, not only CategoryError.
func (v Verdict) Failed() bool {
	return v.Category == CategoryError || (v.Kind == KindError && v.ErrorMessage != "")
}

// MarshalJSON adds the derived status field
func (v Verdict) MarshalJSON() ([]byte, error) {
	type alias Verdict
	a := alias(v)
	if a.Indicators == nil {
		a.Indicators = []string{}
	}
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias: a, Status: v.Status()})
}

// AIVerdictFields carries the fields parsed from model output
type AIVerdictFields struct {
	IsHoax     HoaxFlag
	Confidence float64
	Summary    string
	Indicators []string
	Category   string
	Raw        string
}

// NewAIVerdict builds a verdict from parsed provider output
func NewAIVerdict(f AIVerdictFields) Verdict {
	summary := f.Summary
	if summary == "" {
		summary = "The AI provider returned no summary."
	}
	return Verdict{
		Kind:        KindAI,
		Provider:    ProviderAI,
		IsHoax:      f.IsHoax,
		Confidence:  clampConfidence(f.Confidence),
		Summary:     summary,
		Indicators:  nonNil(f.Indicators),
		Category:    f.Category,
		RawResponse: f.Raw,
	}
}

// HeuristicVerdictFields carries the keyword classifier output
type HeuristicVerdictFields struct {
	IsHoax      HoaxFlag
	Confidence  float64
	Explanation string
	Reasoning   string
	RedFlags    []RedFlag
}

// NewHeuristicVerdict builds a fallback verdict. Indicators mirror the red flags.
func NewHeuristicVerdict(f HeuristicVerdictFields) Verdict {
	indicators := make([]string, 0, len(f.RedFlags))
	for _, rf := range f.RedFlags {
		indicators = append(indicators, rf.Indicator)
	}
	return Verdict{
		Kind:       KindHeuristic,
		Provider:   ProviderHeuristic,
		IsHoax:     f.IsHoax,
		Confidence: clampConfidence(f.Confidence),
		Summary:    f.Explanation,
		Indicators: indicators,
		Category:   CategoryFallback,
		RedFlags:   f.RedFlags,
		Reasoning:  f.Reasoning,
	}
}

// NewErrorVerdict builds a verdict for an analysis that could not be performed.
// The error message is kept only for the Error and validation categories.
func NewErrorVerdict(provider Provider, category, summary, message string, indicators []string) Verdict {
	v := Verdict{
		Kind:       KindError,
		Provider:   provider,
		IsHoax:     HoaxUnknown,
		Confidence: 0,
		Summary:    summary,
		Indicators: nonNil(indicators),
		Category:   category,
	}
	switch category {
	case CategoryError, CategoryValidationError, CategoryFetchError:
		v.ErrorMessage = message
	}
	return v
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(c, 1))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
