package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/stoppls/internal/model"
)

// fakeCompleter returns a scripted response and records the prompts it
// was asked to evaluate.
type fakeCompleter struct {
	response string
	err      error

	systemPrompts []string
	userPrompts   []string
}

func (f *fakeCompleter) Complete(
	_ context.Context, system, user string,
) (string, error) {
	f.systemPrompts = append(f.systemPrompts, system)
	f.userPrompts = append(f.userPrompts, user)
	return f.response, f.err
}

func testRule(name string) model.Rule {
	return model.Rule{
		Name:        name,
		Description: "test rule",
		Type:        model.RuleTypeNaturalLanguage,
		Enabled:     true,
		Prompt:      "The email is from a recruiter.",
		Actions: []model.RuleAction{{
			Type:       "reply",
			Parameters: map[string]string{"text": "No thanks."},
		}},
	}
}

func testMessage() model.EmailMessage {
	return model.EmailMessage{
		MessageID:  "<msg-1@example.com>",
		Sender:     "recruiter@example.com",
		Recipients: []string{"me@example.com"},
		Subject:    "Exciting opportunity",
		BodyText:   "We have a great role for you.",
		Location:   "INBOX",
	}
}

func TestEvaluateEmailMatch(t *testing.T) {
	completer := &fakeCompleter{response: "Yes, this is clearly a recruiter email."}
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{testRule("Recruiters")}},
		completer, nil,
	)

	results := engine.EvaluateEmail(context.Background(), testMessage())

	require.Len(t, results, 1)
	assert.Equal(t, "Recruiters", results[0].Rule.Name)
	assert.True(t, results[0].Matched)
	require.Len(t, results[0].Actions, 1)
	assert.Equal(t, "reply", results[0].Actions[0].Type)

	require.Len(t, completer.systemPrompts, 1)
	assert.Contains(t, completer.systemPrompts[0], "Rule: Recruiters")
	assert.Contains(t, completer.systemPrompts[0], "The email is from a recruiter.")
	assert.Contains(t, completer.userPrompts[0], "From: recruiter@example.com")
	assert.Contains(t, completer.userPrompts[0], "Subject: Exciting opportunity")
}

func TestEvaluateEmailNoMatch(t *testing.T) {
	completer := &fakeCompleter{response: "No, this is a personal email."}
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{testRule("Recruiters")}},
		completer, nil,
	)

	results := engine.EvaluateEmail(context.Background(), testMessage())
	assert.Empty(t, results)
}

func TestEvaluateEmailSkipsDisabledRules(t *testing.T) {
	disabled := testRule("Disabled")
	disabled.Enabled = false

	completer := &fakeCompleter{response: "Yes"}
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{disabled}}, completer, nil,
	)

	results := engine.EvaluateEmail(context.Background(), testMessage())
	assert.Empty(t, results)
	assert.Empty(t, completer.systemPrompts, "disabled rule should never reach the backend")
}

func TestEvaluateEmailLocationFilter(t *testing.T) {
	spamOnly := testRule("Spam only")
	spamOnly.Location = "SPAM"
	everywhere := testRule("Everywhere")

	completer := &fakeCompleter{response: "Yes"}
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{spamOnly, everywhere}},
		completer, nil,
	)

	msg := testMessage()
	msg.Location = "INBOX"

	results := engine.EvaluateEmail(context.Background(), msg)

	require.Len(t, results, 1)
	assert.Equal(t, "Everywhere", results[0].Rule.Name)
	assert.Len(t, completer.systemPrompts, 1)
}

func TestEvaluateEmailBackendError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("api unavailable")}
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{testRule("Recruiters")}},
		completer, nil,
	)

	results := engine.EvaluateEmail(context.Background(), testMessage())
	assert.Empty(t, results, "backend errors are treated as non-matches")
}

func TestEvaluateEmailNilCompleter(t *testing.T) {
	engine := New(
		&model.RuleConfig{Rules: []model.Rule{testRule("Recruiters")}},
		nil, nil,
	)

	results := engine.EvaluateEmail(context.Background(), testMessage())
	assert.Empty(t, results)
}

func TestParseDecision(t *testing.T) {
	cases := []struct {
		response string
		want     bool
	}{
		{"Yes", true},
		{"yes, it matches", true},
		{"  YES. The email is from a recruiter.", true},
		{"No", false},
		{"no way", false},
		{"Maybe yes", false},
		{"", false},
		{"The answer is yes", false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.want, parseDecision(tc.response),
			"response %q", tc.response)
	}
}
