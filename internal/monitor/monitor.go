// Package monitor owns the polling loop: it fetches new messages
// since the last check, runs them through the rule engine, executes
// or simulates the matched actions, and drives the daily report
// check.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/provider"
	"github.com/nhle/stoppls/internal/report"
	"github.com/nhle/stoppls/internal/rules"
)

const (
	// errorRetryInterval is the fallback sleep after a failed poll
	// cycle, to avoid a tight failure loop while still retrying.
	errorRetryInterval = 5 * time.Second

	// stopTimeout bounds how long Stop waits for the polling
	// goroutine to exit.
	stopTimeout = 5 * time.Second
)

// Options configures a Monitor.
type Options struct {
	// Provider is the mailbox the monitor polls and acts against.
	// The monitor owns its connection exclusively.
	Provider provider.Mailbox

	// CheckInterval is the delay between poll cycles. Zero means one
	// minute.
	CheckInterval time.Duration

	// MonitoredAddresses filters fetched messages by sender. Empty
	// means no filtering.
	MonitoredAddresses []string

	// Engine evaluates messages against rules. Nil disables rule
	// evaluation (messages are observed but nothing happens).
	Engine *rules.Engine

	// ReadOnly logs intended actions without mutating the mailbox.
	ReadOnly bool

	// Tracker records executed actions and produces daily reports.
	// Nil disables both.
	Tracker *report.Tracker

	// EnableReports turns on the per-cycle daily report check.
	// Reports go to the first monitored address.
	EnableReports bool

	Logger *slog.Logger
}

// Monitor polls the mailbox and processes new messages. All mailbox
// access happens from the caller's goroutine or the single background
// polling goroutine; the two never run concurrently.
type Monitor struct {
	provider      provider.Mailbox
	checkInterval time.Duration
	addresses     []string
	engine        *rules.Engine
	readOnly      bool
	tracker       *report.Tracker
	enableReports bool
	log           *slog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time

	mu            sync.Mutex
	running       bool
	lastCheckTime time.Time
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// New creates a Monitor from options.
func New(opts Options) *Monitor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	interval := opts.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Monitor{
		provider:      opts.Provider,
		checkInterval: interval,
		addresses:     opts.MonitoredAddresses,
		engine:        opts.Engine,
		readOnly:      opts.ReadOnly,
		tracker:       opts.Tracker,
		enableReports: opts.EnableReports,
		log:           log.With("component", "monitor"),
		now:           time.Now,
	}
}

// IsRunning reports whether the polling goroutine is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// LastCheckTime returns the current watermark; zero before the first
// poll cycle.
func (m *Monitor) LastCheckTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastCheckTime
}

// ReadOnly reports whether the monitor simulates actions.
func (m *Monitor) ReadOnly() bool {
	return m.readOnly
}

// SetLastCheckTime seeds the watermark, making the next poll fetch
// messages newer than t instead of treating itself as the first run.
// Used by one-shot invocations that have no long-lived process state.
func (m *Monitor) SetLastCheckTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCheckTime = t
}

// Start connects the mailbox if needed and launches the background
// polling goroutine. It returns immediately; a failed connection
// aborts the start. Starting a running monitor is a warned no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn("Email monitor is already running")
		return nil
	}
	m.mu.Unlock()

	m.log.Info("Starting email monitor")

	if !m.provider.IsConnected() {
		if err := m.provider.Connect(ctx); err != nil {
			m.log.Error("Failed to connect to email provider", "error", err)
			return fmt.Errorf("connecting to email provider: %w", err)
		}
	}

	m.mu.Lock()
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	go m.runLoop(ctx, stopCh, doneCh)

	m.log.Info("Email monitor started")
	return nil
}

// Stop signals the polling goroutine to exit, waits for it with a
// bounded timeout, and disconnects the mailbox. Stopping a stopped
// monitor is a warned no-op.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Warn("Email monitor is not running")
		return
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	m.mu.Unlock()

	m.log.Info("Stopping email monitor")

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		m.log.Warn("Polling goroutine did not exit within timeout")
	}

	if m.provider.IsConnected() {
		if err := m.provider.Disconnect(ctx); err != nil {
			m.log.Error("Error disconnecting from email provider", "error", err)
		}
	}

	m.log.Info("Email monitor stopped")
}

// RunSingleIteration connects the mailbox if needed and runs one poll
// pass. It leaves the connection open for the caller to reuse.
func (m *Monitor) RunSingleIteration(ctx context.Context) bool {
	if !m.provider.IsConnected() {
		if err := m.provider.Connect(ctx); err != nil {
			m.log.Error("Failed to connect to email provider", "error", err)
			return false
		}
	}

	return m.CheckForNewMessages(ctx) == nil
}

// runLoop is the background polling loop.
func (m *Monitor) runLoop(
	ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{},
) {
	defer close(doneCh)

	m.log.Debug("Starting monitoring loop")

	for {
		interval := m.checkInterval

		if err := m.CheckForNewMessages(ctx); err != nil {
			interval = errorRetryInterval
		} else if err := m.checkDailyReport(ctx); err != nil {
			interval = errorRetryInterval
		}

		select {
		case <-stopCh:
			m.log.Debug("Monitoring loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// CheckForNewMessages runs one poll pass. On the very first call it
// only captures the watermark, so historical mail is never processed
// on startup. Fetch and processing failures are logged and returned,
// never propagated as panics; the watermark advances unconditionally
// so a persistent error cannot reprocess the same window in a tight
// loop.
func (m *Monitor) CheckForNewMessages(ctx context.Context) error {
	m.log.Debug("Checking for new messages")

	now := m.now()

	m.mu.Lock()
	lastCheck := m.lastCheckTime
	m.lastCheckTime = now
	m.mu.Unlock()

	if lastCheck.IsZero() {
		m.log.Info("First run, setting last check time")
		return nil
	}

	messages, err := m.provider.GetMessages(ctx, provider.FetchOptions{
		FromAddresses: m.addresses,
		Since:         lastCheck,
	})
	if err != nil {
		m.log.Error("Error checking for new messages", "error", err)
		return err
	}

	m.log.Info("Found new messages", "count", len(messages))

	for _, msg := range messages {
		m.ProcessMessage(ctx, msg)
	}

	return nil
}

// checkDailyReport asks the tracker whether a daily report is due and
// lets it deliver one to the first monitored address.
func (m *Monitor) checkDailyReport(ctx context.Context) error {
	if !m.enableReports || m.tracker == nil || len(m.addresses) == 0 {
		return nil
	}

	m.tracker.CheckAndSendDailyReport(ctx, m.provider, m.addresses[0])
	return nil
}

// ProcessMessage evaluates one message against the rules and executes
// the actions of every matching rule.
func (m *Monitor) ProcessMessage(ctx context.Context, msg model.EmailMessage) {
	m.log.Info("Processing message",
		"subject", msg.Subject, "sender", msg.Sender,
	)
	m.log.Debug("Message details",
		"message_id", msg.MessageID,
		"thread_id", msg.ThreadID,
		"date", msg.Date,
		"location", msg.Location,
	)

	if m.engine == nil {
		m.log.Debug("No rule engine configured, skipping rule evaluation")
		return
	}

	for _, result := range m.engine.EvaluateEmail(ctx, msg) {
		m.ExecuteActions(ctx, msg, result)
	}
}

// ExecuteActions executes (or, in read-only mode, simulates) every
// action of a matched rule. One action's failure never blocks its
// siblings. Successful actions are forwarded to the tracker; failed,
// skipped, and simulated actions are not.
func (m *Monitor) ExecuteActions(
	ctx context.Context, msg model.EmailMessage, result rules.Result,
) {
	if m.readOnly {
		m.executeReadOnly(msg, result)
		return
	}

	m.log.Info("Executing actions for rule", "rule", result.Rule.Name)

	for _, action := range result.Actions {
		m.log.Debug("Executing action", "action_type", action.Type)

		var ok bool
		var err error

		switch action.Type {
		case "reply":
			ok, err = m.provider.SendReply(
				ctx, msg, action.Param("text"), action.Param("html"),
			)
		case "archive":
			ok, err = m.provider.ArchiveMessage(ctx, msg)
		case "label":
			label := action.Param("label")
			if label == "" {
				m.log.Warn("No label specified in label action",
					"rule", result.Rule.Name,
				)
				continue
			}
			ok, err = m.provider.ApplyLabel(ctx, msg, label)
		default:
			m.log.Warn("Unknown action type", "action_type", action.Type)
			continue
		}

		if err != nil {
			m.log.Error("Error executing action",
				"action_type", action.Type, "error", err,
			)
			continue
		}
		if !ok {
			m.log.Error("Action reported failure",
				"action_type", action.Type, "subject", msg.Subject,
			)
			continue
		}

		m.log.Info("Action executed",
			"action_type", action.Type, "subject", msg.Subject,
		)

		if m.tracker != nil {
			m.tracker.RecordAction(msg, action, result.Rule.Name)
		}
	}
}

// executeReadOnly logs what each action would do. This path never
// touches the mailbox and never records anything. The message
// templates are load-bearing: consumers scrape them from logs.
func (m *Monitor) executeReadOnly(msg model.EmailMessage, result rules.Result) {
	m.log.Info(fmt.Sprintf(
		"[READ-ONLY] Would execute actions for rule: %s", result.Rule.Name,
	))

	for _, action := range result.Actions {
		switch action.Type {
		case "reply":
			m.log.Info(fmt.Sprintf(
				"[READ-ONLY] Would reply to message: %s", msg.Subject,
			))
			m.log.Debug("Reply text", "text", action.Param("text"))
		case "archive":
			m.log.Info(fmt.Sprintf(
				"[READ-ONLY] Would archive message: %s", msg.Subject,
			))
		case "label":
			m.log.Info(fmt.Sprintf(
				"[READ-ONLY] Would apply label '%s' to message: %s",
				action.Param("label"), msg.Subject,
			))
		default:
			m.log.Warn("Unknown action type", "action_type", action.Type)
		}
	}
}
