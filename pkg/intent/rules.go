package intent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk YAML layout:
//
//	rules:
//	  - tag: time
//	    patterns: ['hora\b', 'tiempo\b']
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes rules from YAML.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("intent: parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, ErrNoRules
	}
	return f.Rules, nil
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intent: read rules: %w", err)
	}
	return ParseRules(data)
}

// FromFile builds a classifier from a rules file, or the defaults when path is empty.
func FromFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules)
}
