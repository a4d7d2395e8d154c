package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/provider/memory"
	"github.com/nhle/stoppls/internal/report"
	"github.com/nhle/stoppls/internal/rules"
)

// yesCompleter matches every rule it is asked about.
type yesCompleter struct{}

func (yesCompleter) Complete(context.Context, string, string) (string, error) {
	return "Yes, this matches.", nil
}

// failingMailbox reports failure for every reply without erroring.
type failingMailbox struct {
	*memory.Provider
}

func (f *failingMailbox) SendReply(
	_ context.Context, _ model.EmailMessage, _, _ string,
) (bool, error) {
	return false, nil
}

func recruiterRules() *model.RuleConfig {
	return &model.RuleConfig{Rules: []model.Rule{{
		Name:    "Recruiters",
		Type:    model.RuleTypeNaturalLanguage,
		Enabled: true,
		Prompt:  "The email is from a recruiter.",
		Actions: []model.RuleAction{
			{
				Type:       "reply",
				Parameters: map[string]string{"text": "No thanks."},
			},
			{Type: "archive"},
		},
	}}}
}

func recruiterMessage(date time.Time) model.EmailMessage {
	return model.EmailMessage{
		MessageID: "<msg-1@example.com>",
		Sender:    "recruiter@example.com",
		Subject:   "Job opportunity",
		BodyText:  "We have a great role for you.",
		Date:      date,
		Location:  "INBOX",
	}
}

func newTestTracker(t *testing.T) *report.Tracker {
	t.Helper()

	store, err := report.NewFileStore(filepath.Join(t.TempDir(), "actions.json"))
	require.NoError(t, err)

	tracker, err := report.NewTracker(store, "", nil)
	require.NoError(t, err)
	return tracker
}

func TestFirstCheckOnlySetsWatermark(t *testing.T) {
	mailbox := memory.New()
	require.NoError(t, mailbox.Connect(context.Background()))
	mailbox.AddMessage(recruiterMessage(time.Now().Add(-time.Minute)))

	mon := New(Options{
		Provider: mailbox,
		Engine:   rules.New(recruiterRules(), yesCompleter{}, nil),
	})

	require.NoError(t, mon.CheckForNewMessages(context.Background()))

	assert.False(t, mon.LastCheckTime().IsZero())
	assert.Empty(t, mailbox.Replies(), "historical mail must not be processed")
	assert.Empty(t, mailbox.Archived())
}

func TestCheckProcessesMessagesSinceWatermark(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	mon := New(Options{
		Provider: mailbox,
		Engine:   rules.New(recruiterRules(), yesCompleter{}, nil),
	})

	t0 := time.Now()
	mon.now = func() time.Time { return t0 }
	require.NoError(t, mon.CheckForNewMessages(ctx))

	mailbox.AddMessage(recruiterMessage(t0.Add(30 * time.Second)))
	mon.now = func() time.Time { return t0.Add(time.Minute) }
	require.NoError(t, mon.CheckForNewMessages(ctx))

	require.Len(t, mailbox.Replies(), 1)
	assert.Equal(t, "No thanks.", mailbox.Replies()[0].Text)
	require.Len(t, mailbox.Archived(), 1)
	assert.Equal(t, "<msg-1@example.com>", mailbox.Archived()[0].MessageID)
}

func TestWatermarkAdvancesOnFetchError(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()

	mon := New(Options{Provider: mailbox})

	t0 := time.Now()
	mon.now = func() time.Time { return t0 }
	require.NoError(t, mon.CheckForNewMessages(ctx))

	// Disconnected fetches fail, but the watermark still moves.
	t1 := t0.Add(time.Minute)
	mon.now = func() time.Time { return t1 }
	require.Error(t, mon.CheckForNewMessages(ctx))
	assert.True(t, mon.LastCheckTime().Equal(t1))
}

func TestExecuteActionsRecordsOnSuccess(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	tracker := newTestTracker(t)
	mon := New(Options{Provider: mailbox, Tracker: tracker})

	msg := recruiterMessage(time.Now())
	cfg := recruiterRules()
	mon.ExecuteActions(ctx, msg, rules.Result{
		Rule:    cfg.Rules[0],
		Matched: true,
		Actions: cfg.Rules[0].Actions,
	})

	assert.Len(t, mailbox.Replies(), 1)
	assert.Len(t, mailbox.Archived(), 1)

	recorded := tracker.ActionsForDay(time.Now())
	require.Len(t, recorded, 2)
	assert.Equal(t, "reply", recorded[0].ActionType)
	assert.Equal(t, "archive", recorded[1].ActionType)
	assert.Equal(t, "Recruiters", recorded[0].RuleName)
}

func TestExecuteActionsSkipsFailedActions(t *testing.T) {
	mailbox := &failingMailbox{Provider: memory.New()}
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	tracker := newTestTracker(t)
	mon := New(Options{Provider: mailbox, Tracker: tracker})

	cfg := recruiterRules()
	mon.ExecuteActions(ctx, recruiterMessage(time.Now()), rules.Result{
		Rule:    cfg.Rules[0],
		Matched: true,
		Actions: cfg.Rules[0].Actions,
	})

	// The reply failed and must not be recorded; the archive succeeded.
	recorded := tracker.ActionsForDay(time.Now())
	require.Len(t, recorded, 1)
	assert.Equal(t, "archive", recorded[0].ActionType)
}

func TestExecuteActionsSkipsMalformedActions(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	tracker := newTestTracker(t)
	mon := New(Options{Provider: mailbox, Tracker: tracker})

	rule := model.Rule{Name: "Odd", Enabled: true}
	mon.ExecuteActions(ctx, recruiterMessage(time.Now()), rules.Result{
		Rule:    rule,
		Matched: true,
		Actions: []model.RuleAction{
			{Type: "label"},   // no label parameter
			{Type: "forward"}, // unknown type
		},
	})

	assert.Empty(t, mailbox.Labeled())
	assert.Empty(t, tracker.ActionsForDay(time.Now()))
}

func TestReadOnlyModeLogsInsteadOfActing(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	tracker := newTestTracker(t)
	mon := New(Options{
		Provider: mailbox,
		ReadOnly: true,
		Tracker:  tracker,
		Logger:   log,
	})

	msg := recruiterMessage(time.Now())
	cfg := recruiterRules()
	labeled := append(cfg.Rules[0].Actions, model.RuleAction{
		Type:       "label",
		Parameters: map[string]string{"label": "recruiters"},
	})
	mon.ExecuteActions(ctx, msg, rules.Result{
		Rule:    cfg.Rules[0],
		Matched: true,
		Actions: labeled,
	})

	out := buf.String()
	assert.Contains(t, out,
		"[READ-ONLY] Would execute actions for rule: Recruiters")
	assert.Contains(t, out,
		"[READ-ONLY] Would reply to message: Job opportunity")
	assert.Contains(t, out,
		"[READ-ONLY] Would archive message: Job opportunity")
	assert.Contains(t, out,
		"[READ-ONLY] Would apply label 'recruiters' to message: Job opportunity")

	assert.Empty(t, mailbox.Replies())
	assert.Empty(t, mailbox.Archived())
	assert.Empty(t, mailbox.Labeled())
	assert.Empty(t, tracker.ActionsForDay(time.Now()))
}

func TestRunSingleIterationConnects(t *testing.T) {
	mailbox := memory.New()

	mon := New(Options{Provider: mailbox})

	assert.True(t, mon.RunSingleIteration(context.Background()))
	assert.True(t, mailbox.IsConnected(), "connection stays open for reuse")
	assert.False(t, mon.LastCheckTime().IsZero())
}

func TestStartAndStop(t *testing.T) {
	mailbox := memory.New()

	mon := New(Options{
		Provider:      mailbox,
		CheckInterval: time.Hour,
	})

	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))
	assert.True(t, mon.IsRunning())
	assert.True(t, mailbox.IsConnected())

	// Starting again is a no-op.
	require.NoError(t, mon.Start(ctx))

	mon.Stop(ctx)
	assert.False(t, mon.IsRunning())
	assert.False(t, mailbox.IsConnected())

	// Stopping again is a no-op.
	mon.Stop(ctx)
}

func TestSenderFilterLimitsProcessing(t *testing.T) {
	mailbox := memory.New()
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))

	mon := New(Options{
		Provider:           mailbox,
		MonitoredAddresses: []string{"recruiter@example.com"},
		Engine:             rules.New(recruiterRules(), yesCompleter{}, nil),
	})

	t0 := time.Now()
	mon.now = func() time.Time { return t0 }
	require.NoError(t, mon.CheckForNewMessages(ctx))

	mailbox.AddMessage(recruiterMessage(t0.Add(10 * time.Second)))
	other := recruiterMessage(t0.Add(10 * time.Second))
	other.MessageID = "<msg-2@example.com>"
	other.Sender = "friend@example.com"
	mailbox.AddMessage(other)

	mon.now = func() time.Time { return t0.Add(time.Minute) }
	require.NoError(t, mon.CheckForNewMessages(ctx))

	require.Len(t, mailbox.Replies(), 1)
	assert.Equal(t, "<msg-1@example.com>", mailbox.Replies()[0].Original.MessageID)
}
