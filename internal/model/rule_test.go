package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - name: Recruiter emails
    description: Messages from recruiters about job opportunities
    prompt: The email is from a recruiter offering a job opportunity.
    actions:
      - type: reply
        parameters:
          text: Thanks, but I am not looking for new opportunities.
      - type: archive
`)

	cfg, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)

	rule := cfg.Rules[0]
	assert.Equal(t, "Recruiter emails", rule.Name)
	assert.Equal(t, RuleTypeNaturalLanguage, rule.Type)
	assert.True(t, rule.Enabled, "enabled should default to true")

	require.Len(t, rule.Actions, 2)
	assert.Equal(t, "reply", rule.Actions[0].Type)
	assert.Equal(t,
		"Thanks, but I am not looking for new opportunities.",
		rule.Actions[0].Param("text"),
	)
	assert.Equal(t, "archive", rule.Actions[1].Type)
	assert.Empty(t, rule.Actions[1].Param("text"))
}

func TestLoadRulesExplicitDisabled(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - name: First
    prompt: a
    enabled: false
  - name: Second
    prompt: b
    enabled: true
`)

	cfg, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 2)

	assert.False(t, cfg.Rules[0].Enabled)
	assert.True(t, cfg.Rules[1].Enabled)
}

func TestLoadRulesUnknownType(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - name: Weird
    type: RegexRule
    prompt: a
`)

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule type")
}

func TestLoadRulesMissingFile(t *testing.T) {
	cfg, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Rules)
}

func TestSaveRulesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rules.yaml")

	in := &RuleConfig{Rules: []Rule{{
		Name:     "Spam label",
		Type:     RuleTypeNaturalLanguage,
		Enabled:  true,
		Prompt:   "The email is unsolicited marketing.",
		Location: "SPAM",
		Actions: []RuleAction{{
			Type:       "label",
			Parameters: map[string]string{"label": "junk-confirmed"},
		}},
	}}}

	require.NoError(t, SaveRules(path, in))

	out, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, out.Rules, 1)

	assert.Equal(t, in.Rules[0].Name, out.Rules[0].Name)
	assert.Equal(t, in.Rules[0].Prompt, out.Rules[0].Prompt)
	assert.Equal(t, in.Rules[0].Location, out.Rules[0].Location)
	require.Len(t, out.Rules[0].Actions, 1)
	assert.Equal(t, "junk-confirmed", out.Rules[0].Actions[0].Param("label"))
}

func TestRuleAppliesTo(t *testing.T) {
	everywhere := Rule{Name: "a"}
	assert.True(t, everywhere.AppliesTo("INBOX"))
	assert.True(t, everywhere.AppliesTo("SPAM"))
	assert.True(t, everywhere.AppliesTo(""))

	inboxOnly := Rule{Name: "b", Location: "INBOX"}
	assert.True(t, inboxOnly.AppliesTo("INBOX"))
	assert.False(t, inboxOnly.AppliesTo("SPAM"))
	assert.False(t, inboxOnly.AppliesTo(""))
}

func TestRulePromptSection(t *testing.T) {
	rule := Rule{
		Name:        "Recruiter emails",
		Description: "Messages from recruiters",
		Prompt:      "The email offers a job.",
	}

	assert.Equal(t,
		"Rule: Recruiter emails\n"+
			"Description: Messages from recruiters\n"+
			"Criteria: The email offers a job.",
		rule.PromptSection(),
	)
}
