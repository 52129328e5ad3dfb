package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/antihoax/internal/model"
)

// fencedJSONPattern matches a ```json fenced block
var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n?\\s*```")

// requiredFields must all be present in the model's JSON answer
var requiredFields = []string{"is_hoax", "confidence_score", "analysis_summary", "key_indicators", "category"}

// analysisPayload is the JSON object the model is asked to produce
type analysisPayload struct {
	IsHoax          *bool    `json:"is_hoax"`
	ConfidenceScore float64  `json:"confidence_score"`
	AnalysisSummary string   `json:"analysis_summary"`
	KeyIndicators   []string `json:"key_indicators"`
	Category        string   `json:"category"`
}

// ExtractJSON locates the JSON object in free-form model output.
// A fenced ```json block wins; otherwise the span from the first '{' to the
// last '}' is used. ok is false when neither form is present.
func ExtractJSON(raw string) (string, bool) {
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}

	return "", false
}

// ParseResponse turns raw model output into a verdict. It never fails: any
// problem yields an error verdict carrying a diagnostic message.
func ParseResponse(raw string) model.Verdict {
	candidate, ok := ExtractJSON(raw)
	if !ok {
		// Last resort: the whole text
		candidate = strings.TrimSpace(raw)
	}

	payload, err := decodePayload(candidate)
	if err != nil {
		v := model.NewErrorVerdict(
			model.ProviderAI,
			model.CategoryError,
			"Failed to parse the analysis result from the AI.",
			"Parsing error: "+err.Error(),
			[]string{"Invalid JSON response"},
		)
		v.RawResponse = raw
		return v
	}

	return model.NewAIVerdict(model.AIVerdictFields{
		IsHoax:     model.HoaxFlagFromBool(payload.IsHoax),
		Confidence: payload.ConfidenceScore,
		Summary:    payload.AnalysisSummary,
		Indicators: payload.KeyIndicators,
		Category:   payload.Category,
		Raw:        raw,
	})
}

func decodePayload(candidate string) (*analysisPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}

	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("missing required field '%s' in AI JSON response", name)
		}
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("invalid field type: %v", err)
	}

	return &payload, nil
}
