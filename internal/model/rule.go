package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RuleTypeNaturalLanguage is the type discriminator for rules whose
// matching criterion is a free-text prompt evaluated by the AI backend.
const RuleTypeNaturalLanguage = "NaturalLanguageRule"

// RuleAction describes a single action to take when a rule matches.
// Parameters are interpreted per action type: "reply" uses "text" and
// optionally "html", "label" uses "label", "archive" takes none.
// Unknown keys are ignored.
type RuleAction struct {
	Type       string            `mapstructure:"type" yaml:"type"`
	Parameters map[string]string `mapstructure:"parameters" yaml:"parameters"`
}

// Param returns the named parameter, or the empty string when absent.
func (a RuleAction) Param(key string) string {
	return a.Parameters[key]
}

// Rule is a named, enable-able matching criterion plus the ordered
// actions to take on match. Rules are a tagged union keyed by Type;
// NaturalLanguageRule is currently the only variant and carries its
// criterion in Prompt.
type Rule struct {
	// Name identifies the rule in logs and reports. Uniqueness within
	// a configuration is relied upon for display but not enforced.
	Name        string `mapstructure:"name" yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`

	// Type is the variant discriminator. Empty means NaturalLanguageRule.
	Type string `mapstructure:"type" yaml:"type"`

	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Prompt is the natural-language matching criterion
	// (NaturalLanguageRule only).
	Prompt string `mapstructure:"prompt" yaml:"prompt"`

	// Location, when set, restricts the rule to messages carrying the
	// same location tag (e.g. "INBOX", "SPAM"). Empty means the rule
	// applies regardless of location.
	Location string `mapstructure:"location" yaml:"location"`

	Actions []RuleAction `mapstructure:"actions" yaml:"actions"`
}

// PromptSection returns the rule's contribution to the AI system
// prompt: its name, description, and matching criterion.
func (r Rule) PromptSection() string {
	return fmt.Sprintf(
		"Rule: %s\nDescription: %s\nCriteria: %s",
		r.Name, r.Description, r.Prompt,
	)
}

// AppliesTo reports whether the rule's location filter admits a
// message tagged with the given location. Rules without a location
// filter admit every message.
func (r Rule) AppliesTo(location string) bool {
	return r.Location == "" || r.Location == location
}

// RuleConfig is an ordered list of rules. Order defines report and
// log ordering only; all enabled, location-matching rules are
// evaluated independently.
type RuleConfig struct {
	Rules []Rule `mapstructure:"rules" yaml:"rules"`
}

// LoadRules reads a rule configuration from a YAML file. A missing
// file yields an empty configuration rather than an error. An unknown
// rule type is an error.
func LoadRules(path string) (*RuleConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return &RuleConfig{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &RuleConfig{}, nil
		}
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}

	cfg := &RuleConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing rules %s: %w", path, err)
	}

	for i := range cfg.Rules {
		r := &cfg.Rules[i]

		if r.Type == "" {
			r.Type = RuleTypeNaturalLanguage
		}
		if r.Type != RuleTypeNaturalLanguage {
			return nil, fmt.Errorf(
				"rule %q: unknown rule type %q", r.Name, r.Type,
			)
		}

		// Viper unmarshals missing bools as false; treat unset as
		// enabled, explicit false as disabled.
		key := fmt.Sprintf("rules.%d.enabled", i)
		if !r.Enabled && !v.IsSet(key) {
			r.Enabled = true
		}
	}

	return cfg, nil
}

// SaveRules writes the rule configuration to a YAML file at path,
// creating parent directories if needed.
func SaveRules(path string, cfg *RuleConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating rules directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("rules", cfg.Rules)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing rules to %s: %w", path, err)
	}

	return nil
}
