package risk

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/entities"
)

//go:embed keywords.yaml
var keywordsYAML []byte

type keywordFile struct {
	Version        string              `yaml:"version"`
	HardCategories []string            `yaml:"hard_categories"`
	Categories     map[string][]string `yaml:"categories"`
	Positive       map[string][]string `yaml:"positive"`
}

// Classifier is the rule stage of risk evaluation
type Classifier struct {
	version  string
	hard     map[string]bool
	keywords map[string][]string
	positive map[string][]string
}

// NewClassifier loads the embedded keyword lists
func NewClassifier() (*Classifier, error) {
	var f keywordFile
	if err := yaml.Unmarshal(keywordsYAML, &f); err != nil {
		return nil, err
	}

	hard := make(map[string]bool, len(f.HardCategories))
	for _, c := range f.HardCategories {
		hard[c] = true
	}

	return &Classifier{
		version:  f.Version,
		hard:     hard,
		keywords: f.Categories,
		positive: f.Positive,
	}, nil
}

// Version returns the keyword list version
func (c *Classifier) Version() string {
	return c.version
}

// Classify scans title and description and applies the decision table:
// any hard keyword forces red and skips escalation; zero flags is a
// confident green; everything in between is uncertain and escalates.
func (c *Classifier) Classify(title, description string) *dto.RuleVerdict {
	text := strings.ToLower(title + "\n" + description)

	verdict := &dto.RuleVerdict{
		Flags:         make(map[string][]string),
		PositiveFlags: make(map[string][]string),
	}

	for category, words := range c.keywords {
		for _, kw := range words {
			if strings.Contains(text, strings.ToLower(kw)) {
				verdict.Flags[category] = append(verdict.Flags[category], kw)
			}
		}
	}
	for category, words := range c.positive {
		for _, kw := range words {
			if strings.Contains(text, strings.ToLower(kw)) {
				verdict.PositiveFlags[category] = append(verdict.PositiveFlags[category], kw)
			}
		}
	}

	for category := range verdict.Flags {
		if c.hard[category] {
			verdict.HardFlag = true
		}
	}

	softCategories := 0
	for category := range verdict.Flags {
		if !c.hard[category] {
			softCategories++
		}
	}

	switch {
	case verdict.HardFlag:
		verdict.RiskLevel = entities.RiskRed
		verdict.RuleConfidence = 0.8
		verdict.NeedsLLM = false
	case len(verdict.Flags) == 0:
		verdict.RiskLevel = entities.RiskGreen
		verdict.RuleConfidence = 0.7
		if len(verdict.PositiveFlags) >= 2 {
			verdict.RuleConfidence = 0.75
		}
		verdict.NeedsLLM = false
	case softCategories >= 3:
		verdict.RiskLevel = entities.RiskYellow
		verdict.RuleConfidence = 0.6
		verdict.NeedsLLM = true
	default:
		verdict.RiskLevel = entities.RiskYellow
		verdict.RuleConfidence = 0.5
		verdict.NeedsLLM = true
	}

	return verdict
}
