// Package dataset holds labeled sample texts used by the e2e runner
package dataset

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/antihoax/internal/model"
)

// Group names as they appear in dataset files
const (
	GroupHoax        = "hoaks"
	GroupFact        = "fakta"
	GroupNeedsReview = "perlu_verifikasi"
)

// Similarity thresholds
const (
	minCommonWords      = 3
	minWordLength       = 4 // words must be longer than 3 characters
	similarityThreshold = 0.2
)

//go:embed sample-news.json
var defaultData []byte

// Sample is one labeled text
type Sample struct {
	ID             string `json:"id" yaml:"id"`
	Text           string `json:"text" yaml:"text"`
	ExpectedStatus string `json:"expectedStatus" yaml:"expectedStatus"`
}

// Dataset groups samples by their expected label
type Dataset struct {
	Hoaks           []Sample `json:"hoaks" yaml:"hoaks"`
	Fakta           []Sample `json:"fakta" yaml:"fakta"`
	PerluVerifikasi []Sample `json:"perlu_verifikasi" yaml:"perlu_verifikasi"`
}

// Case is a sample tagged with its group, ready to run
type Case struct {
	Sample
	Group string
}

// Match is a dataset sample similar to some input text
type Match struct {
	Sample
	Group        string
	Score        float64
	MatchedWords []string
}

// Default returns the embedded sample dataset
func Default() *Dataset {
	d, err := Parse(defaultData, ".json")
	if err != nil {
		// The embedded file is part of the build
		panic(err)
	}
	return d
}

// Load reads a dataset from a JSON or YAML file. An empty path loads the embedded dataset.
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read dataset %s", path)
	}

	d, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, eris.Wrapf(err, "parse dataset %s", path)
	}
	return d, nil
}

// Parse decodes a dataset. ext selects YAML for ".yaml"/".yml", JSON otherwise.
func Parse(data []byte, ext string) (*Dataset, error) {
	var d Dataset

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, eris.Wrap(err, "decode yaml")
		}
	default:
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, eris.Wrap(err, "decode json")
		}
	}

	return &d, nil
}

// Len returns the total number of samples
func (d *Dataset) Len() int {
	return len(d.Hoaks) + len(d.Fakta) + len(d.PerluVerifikasi)
}

// Cases returns every sample in group order: hoaks, fakta, perlu_verifikasi
func (d *Dataset) Cases() []Case {
	cases := make([]Case, 0, d.Len())
	for _, g := range []struct {
		name    string
		samples []Sample
	}{
		{GroupHoax, d.Hoaks},
		{GroupFact, d.Fakta},
		{GroupNeedsReview, d.PerluVerifikasi},
	} {
		for _, s := range g.samples {
			cases = append(cases, Case{Sample: s, Group: g.name})
		}
	}
	return cases
}

// FindSimilar returns the first sample sharing enough long words with text.
// A sample matches when at least three words longer than three characters
// are shared and they make up at least 20% of the shorter text.
func (d *Dataset) FindSimilar(text string) *Match {
	inputWords := words(text)
	if len(inputWords) == 0 {
		return nil
	}

	for _, c := range d.Cases() {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}

		sampleWords := words(c.Text)
		vocab := make(map[string]struct{}, len(sampleWords))
		for _, w := range sampleWords {
			vocab[w] = struct{}{}
		}

		var common []string
		for _, w := range inputWords {
			if _, ok := vocab[w]; ok && utf8.RuneCountInString(w) >= minWordLength {
				common = append(common, w)
			}
		}
		if len(common) < minCommonWords {
			continue
		}

		shorter := min(len(inputWords), len(sampleWords))
		score := float64(len(common)) / float64(shorter)
		if score >= similarityThreshold {
			return &Match{Sample: c.Sample, Group: c.Group, Score: score, MatchedWords: common}
		}
	}

	return nil
}

func words(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// ParseStatus maps a dataset label to a verdict status
func ParseStatus(label string) (model.Status, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case GroupHoax, string(model.StatusHoax):
		return model.StatusHoax, nil
	case GroupFact, string(model.StatusFact):
		return model.StatusFact, nil
	case GroupNeedsReview, string(model.StatusNeedsReview):
		return model.StatusNeedsReview, nil
	default:
		return "", eris.Errorf("unknown expected status %q", label)
	}
}

// Accepts reports whether got satisfies expected. A hoax flagged for review still counts.
func Accepts(expected, got model.Status) bool {
	return got == expected || (expected == model.StatusHoax && got == model.StatusNeedsReview)
}
