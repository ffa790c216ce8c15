// Package dedup decides whether two deal records describe the same event
// and which of them survives.
package dedup

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds every threshold and weight used by the engine. Inline
// resolution and the sweep share one Policy.
type Policy struct {
	ExactURLMinLength          int     `yaml:"exact_url_min_length"`
	LexicalDuplicate           float64 `yaml:"lexical_duplicate"`
	LexicalDuplicateSameSource float64 `yaml:"lexical_duplicate_same_source"`
	LexicalBorderline          float64 `yaml:"lexical_borderline"`
	LexicalMinWordLength       int     `yaml:"lexical_min_word_length"`
	EntityOverlap              float64 `yaml:"entity_overlap"`
	SemanticMinSimilarity      float64 `yaml:"semantic_min_similarity"`
	// SemanticWindow bounds the date distance of pairs sent to adjudication
	// on entity evidence alone.
	SemanticWindow       time.Duration `yaml:"semantic_window"`
	SweepWindowDays      int           `yaml:"sweep_window_days"`
	SweepMaxSemantic     int           `yaml:"sweep_max_semantic"`
	AdjudicationInterval time.Duration `yaml:"adjudication_interval"`
	RecencyWindow        time.Duration `yaml:"recency_window"`
	Weights              Weights       `yaml:"weights"`
}

// Weights are the additive survivor-score components.
type Weights struct {
	URLMajor      float64 `yaml:"url_major"`
	URLTrade      float64 `yaml:"url_trade"`
	URLOtherHTTPS float64 `yaml:"url_other_https"`
	URLOtherHTTP  float64 `yaml:"url_other_http"`
	URLPaywalled  float64 `yaml:"url_paywalled"`
	URLTerminal   float64 `yaml:"url_terminal"`
	URLNone       float64 `yaml:"url_none"`

	NameMajor     float64 `yaml:"name_major"`
	NameTrade     float64 `yaml:"name_trade"`
	NameOther     float64 `yaml:"name_other"`
	NamePaywalled float64 `yaml:"name_paywalled"`
	NameTerminal  float64 `yaml:"name_terminal"`

	TitleLengthCap    float64 `yaml:"title_length_cap"`
	TitleAmountBonus  float64 `yaml:"title_amount_bonus"`
	TitleKeywordBonus float64 `yaml:"title_keyword_bonus"`
	SummaryLengthCap  float64 `yaml:"summary_length_cap"`
	SummaryEmphasis   float64 `yaml:"summary_emphasis_bonus"`
	PerUpvote         float64 `yaml:"per_upvote"`
	RecencyMax        float64 `yaml:"recency_max"`
}

func DefaultPolicy() Policy {
	return Policy{
		ExactURLMinLength:          15,
		LexicalDuplicate:           0.90,
		LexicalDuplicateSameSource: 0.85,
		LexicalBorderline:          0.50,
		LexicalMinWordLength:       4,
		EntityOverlap:              0.60,
		SemanticMinSimilarity:      0.75,
		SemanticWindow:             48 * time.Hour,
		SweepWindowDays:            7,
		SweepMaxSemantic:           40,
		AdjudicationInterval:       time.Second,
		RecencyWindow:              48 * time.Hour,
		Weights: Weights{
			URLMajor:      30,
			URLTrade:      20,
			URLOtherHTTPS: 10,
			URLOtherHTTP:  6,
			URLPaywalled:  5,
			URLTerminal:   3,
			URLNone:       -10,

			NameMajor:     15,
			NameTrade:     10,
			NameOther:     4,
			NamePaywalled: 3,
			NameTerminal:  2,

			TitleLengthCap:    8,
			TitleAmountBonus:  5,
			TitleKeywordBonus: 3,
			SummaryLengthCap:  8,
			SummaryEmphasis:   4,
			PerUpvote:         2,
			RecencyMax:        5,
		},
	}
}

// LoadPolicyFile overlays the YAML document at path onto DefaultPolicy.
// Keys missing from the file keep their default values.
func LoadPolicyFile(path string) (Policy, error) {
	policy := DefaultPolicy()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read dedup policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse dedup policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid dedup policy %s: %w", path, err)
	}
	return policy, nil
}

func (p Policy) Validate() error {
	var errs []error
	ratio := func(name string, v float64) {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", name, v))
		}
	}
	ratio("lexical_duplicate", p.LexicalDuplicate)
	ratio("lexical_duplicate_same_source", p.LexicalDuplicateSameSource)
	ratio("lexical_borderline", p.LexicalBorderline)
	ratio("entity_overlap", p.EntityOverlap)
	ratio("semantic_min_similarity", p.SemanticMinSimilarity)

	if p.LexicalBorderline >= p.LexicalDuplicateSameSource || p.LexicalDuplicateSameSource > p.LexicalDuplicate {
		errs = append(errs, errors.New("lexical thresholds must satisfy borderline < same_source <= duplicate"))
	}
	if p.ExactURLMinLength < 0 {
		errs = append(errs, errors.New("exact_url_min_length must not be negative"))
	}
	if p.LexicalMinWordLength < 1 {
		errs = append(errs, errors.New("lexical_min_word_length must be positive"))
	}
	if p.SweepWindowDays < 1 {
		errs = append(errs, errors.New("sweep_window_days must be positive"))
	}
	if p.SweepMaxSemantic < 0 {
		errs = append(errs, errors.New("sweep_max_semantic must not be negative"))
	}
	if p.SemanticWindow < 0 || p.AdjudicationInterval < 0 || p.RecencyWindow <= 0 {
		errs = append(errs, errors.New("durations must not be negative and recency_window must be positive"))
	}
	return errors.Join(errs...)
}
