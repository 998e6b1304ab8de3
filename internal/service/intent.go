package service

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"gopkg.in/yaml.v3"
)

// IntentRule maps a namespace to the patterns that select it.
type IntentRule struct {
	Namespace domain.Namespace `yaml:"namespace"`
	Patterns  []string         `yaml:"patterns"`
}

// DefaultIntentRules is the built-in classification table. Order matters:
// the first namespace with a matching pattern wins.
var DefaultIntentRules = []IntentRule{
	{
		Namespace: domain.NamespaceNEC,
		Patterns: []string{
			`\bnec\b`,
			`national\s+electrical\s+code`,
			`nfpa\s*70`,
			`code\s*(article|section|table|c)\b`,
		},
	},
	{
		Namespace: domain.NamespaceWattmonk,
		Patterns: []string{
			`\bwattmonk\b`,
			`permit|plan\s*set|turnaround|sla|pricing|cad|as\s*built`,
		},
	},
}

type compiledRule struct {
	namespace domain.Namespace
	patterns  []*regexp.Regexp
}

// IntentClassifier routes a query to a namespace by keyword patterns.
// It holds only compiled, read-only state and is safe for concurrent use.
type IntentClassifier struct {
	rules []compiledRule
}

// NewIntentClassifier compiles the given rules once. Patterns are matched
// case-insensitively.
func NewIntentClassifier(rules []IntentRule) (*IntentClassifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Namespace.IsIndexed() {
			return nil, fmt.Errorf("intent rule: namespace %q has no index", r.Namespace)
		}
		cr := compiledRule{namespace: r.Namespace}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("intent rule %s: compile %q: %w", r.Namespace, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}
	return &IntentClassifier{rules: compiled}, nil
}

// MustIntentClassifier is NewIntentClassifier for static tables.
func MustIntentClassifier(rules []IntentRule) *IntentClassifier {
	c, err := NewIntentClassifier(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadIntentClassifier builds a classifier from a YAML rules file, or from
// DefaultIntentRules when path is empty.
func LoadIntentClassifier(path string) (*IntentClassifier, error) {
	if path == "" {
		return NewIntentClassifier(DefaultIntentRules)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intents file: %w", err)
	}

	var doc struct {
		Intents []IntentRule `yaml:"intents"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse intents file: %w", err)
	}
	if len(doc.Intents) == 0 {
		return nil, fmt.Errorf("intents file %s defines no intents", path)
	}

	return NewIntentClassifier(doc.Intents)
}

// Classify returns the first namespace whose patterns match the query, or
// domain.NamespaceGeneral.
func (c *IntentClassifier) Classify(query string) domain.Namespace {
	q := strings.ToLower(query)
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(q) {
				return r.namespace
			}
		}
	}
	return domain.NamespaceGeneral
}
