// Package intent maps user utterances to local tool tags using ordered
// pattern rules.
//
// Rules are evaluated in the order they are configured and the first rule
// with any matching pattern wins, so ordering is the tie-break policy when an
// utterance could match several tags.
//
//	c := intent.Default()
//	tag, ok := c.Classify("¿Qué hora es?") // "time", true
package intent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Tag identifies a local tool.
type Tag string

// Built-in tags.
const (
	TagTime     Tag = "time"
	TagWeather  Tag = "weather"
	TagGreeting Tag = "greeting"
)

// ErrNoRules is returned when a classifier is built without rules.
var ErrNoRules = errors.New("intent: at least one rule required")

// Rule associates a tag with the patterns that select it.
type Rule struct {
	Tag      Tag      `yaml:"tag"`
	Patterns []string `yaml:"patterns"`
}

// DefaultRules returns the built-in Spanish rule set.
// Order matters: a bare "tiempo" is a time request before it is a weather one.
func DefaultRules() []Rule {
	return []Rule{
		{
			Tag:      TagTime,
			Patterns: []string{`hora\b`, `tiempo\b`, `qué hora es\b`, `que hora es\b`, `hora actual\b`},
		},
		{
			Tag:      TagWeather,
			Patterns: []string{`clima\b`, `tiempo (en|para)\b`, `temperatura\b`, `lluvia\b`, `pronóstico\b`},
		},
		{
			Tag:      TagGreeting,
			Patterns: []string{`hola\b`, `buenos días\b`, `buenas tardes\b`, `buenas noches\b`, `hey jarvis\b`},
		},
	}
}

type compiledRule struct {
	tag      Tag
	patterns []*regexp.Regexp
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// New compiles the rules into a classifier.
func New(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Tag == "" {
			return nil, fmt.Errorf("intent: rule %d: empty tag", i)
		}
		cr := compiledRule{tag: r.Tag}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("intent: rule %q: pattern %q: %w", r.Tag, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Default returns a classifier for DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the tag of the first matching rule.
func (c *Classifier) Classify(utterance string) (Tag, bool) {
	text := strings.ToLower(utterance)
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return r.tag, true
			}
		}
	}
	return "", false
}

// Tags returns the configured tags in evaluation order.
func (c *Classifier) Tags() []Tag {
	tags := make([]Tag, len(c.rules))
	for i, r := range c.rules {
		tags[i] = r.tag
	}
	return tags
}
