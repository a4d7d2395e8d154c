// Package rules evaluates email messages against natural-language
// rules. Matching is delegated to an external text-completion backend;
// the engine's job is building unambiguous prompts and robustly
// parsing a free-text decision.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhle/stoppls/internal/model"
)

// Completer is the text-completion backend contract. Implementations
// send a system and user prompt and return the generated text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Result is produced for every rule that matched a message. Rules
// that do not match produce no result.
type Result struct {
	Rule    model.Rule
	Matched bool
	Actions []model.RuleAction
}

// Engine evaluates messages against a rule configuration. A nil
// completer (no API credential configured) makes the engine inert:
// every evaluation returns no matches.
type Engine struct {
	config    *model.RuleConfig
	completer Completer
	log       *slog.Logger
}

// New creates a rule engine. completer may be nil, in which case the
// condition is surfaced once here rather than on every evaluation.
func New(
	config *model.RuleConfig, completer Completer, log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "rules")

	if completer == nil {
		log.Warn("No AI credential configured; rule evaluation is disabled")
	}

	return &Engine{
		config:    config,
		completer: completer,
		log:       log,
	}
}

// EvaluateEmail evaluates the message against every enabled rule
// whose location filter admits it, in configuration order, and
// returns a result per matching rule.
func (e *Engine) EvaluateEmail(
	ctx context.Context, msg model.EmailMessage,
) []Result {
	e.log.Debug("Evaluating email",
		"subject", msg.Subject, "sender", msg.Sender,
	)

	var results []Result

	for _, rule := range e.config.Rules {
		if !rule.Enabled {
			e.log.Debug("Skipping disabled rule", "rule", rule.Name)
			continue
		}
		if !rule.AppliesTo(msg.Location) {
			e.log.Debug("Skipping rule for location",
				"rule", rule.Name,
				"rule_location", rule.Location,
				"message_location", msg.Location,
			)
			continue
		}

		if e.evaluateRule(ctx, rule, msg) {
			e.log.Info("Rule matched", "rule", rule.Name)
			results = append(results, Result{
				Rule:    rule,
				Matched: true,
				Actions: rule.Actions,
			})
		} else {
			e.log.Debug("Rule did not match", "rule", rule.Name)
		}
	}

	e.log.Info("Evaluation complete", "matched", len(results))
	return results
}

// evaluateRule asks the completion backend whether the rule matches
// the message. Any backend failure is reported and treated as a
// non-match; this method never returns an error.
func (e *Engine) evaluateRule(
	ctx context.Context, rule model.Rule, msg model.EmailMessage,
) bool {
	if e.completer == nil {
		return false
	}

	response, err := e.completer.Complete(
		ctx, systemPrompt(rule), userPrompt(msg),
	)
	if err != nil {
		e.log.Error("Error evaluating rule with AI",
			"rule", rule.Name, "error", err,
		)
		return false
	}

	return parseDecision(response)
}

// systemPrompt embeds the rule into the instruction given to the AI.
func systemPrompt(rule model.Rule) string {
	return fmt.Sprintf(
		`You are an email processing assistant that determines if an email matches a specific rule.

%s

Respond with a clear "Yes" or "No" at the beginning of your response, followed by a brief explanation.
Only say "Yes" if the email clearly matches the criteria above.`,
		rule.PromptSection(),
	)
}

// userPrompt embeds the message details into the evaluation request.
func userPrompt(msg model.EmailMessage) string {
	return fmt.Sprintf(
		`Please evaluate if the following email matches the rule:

From: %s
To: %s
Subject: %s
Date: %s

Body:
%s

Does this email match the rule criteria? Answer with Yes or No.`,
		msg.Sender,
		strings.Join(msg.Recipients, ", "),
		msg.Subject,
		msg.Date,
		msg.BodyText,
	)
}

// parseDecision interprets the backend's free-text response. The rule
// matches iff the trimmed, lowercased response starts with "yes"; any
// other content, including ambiguous or malformed text, is a
// non-match.
func parseDecision(response string) bool {
	return strings.HasPrefix(
		strings.ToLower(strings.TrimSpace(response)), "yes",
	)
}
