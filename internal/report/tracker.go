// Package report records actions taken by the monitor and produces
// the daily digest reports sent through the mailbox provider.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/provider"
)

// Tracker is an append-only action recorder plus report generator.
// Every operation loads and rewrites the whole store; the tracker
// assumes it is the store's only writer.
type Tracker struct {
	store Store
	log   *slog.Logger

	// reportHour/reportMinute is the local time of day at or after
	// which a daily report may go out.
	reportHour   int
	reportMinute int

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewTracker creates a tracker over the given store. reportTime is
// the "15:04" local time gating daily report delivery; empty means
// 09:00.
func NewTracker(store Store, reportTime string, log *slog.Logger) (*Tracker, error) {
	if log == nil {
		log = slog.Default()
	}

	if reportTime == "" {
		reportTime = "09:00"
	}
	parsed, err := time.Parse("15:04", reportTime)
	if err != nil {
		return nil, fmt.Errorf("parsing report time %q: %w", reportTime, err)
	}

	return &Tracker{
		store:        store,
		log:          log.With("component", "report"),
		reportHour:   parsed.Hour(),
		reportMinute: parsed.Minute(),
		now:          time.Now,
	}, nil
}

// load reads the store, downgrading read failures to an empty store.
func (t *Tracker) load() *StoreData {
	data, err := t.store.Load()
	if err != nil {
		t.log.Error("Error loading actions", "error", err)
		return &StoreData{}
	}
	return data
}

// save writes the store, logging and swallowing failures. A lost
// record is acceptable under at-least-once, best-effort semantics.
func (t *Tracker) save(data *StoreData) {
	if err := t.store.Save(data); err != nil {
		t.log.Error("Error saving actions", "error", err)
	}
}

// RecordAction appends a record for an action whose mailbox-side
// effect was confirmed successful.
func (t *Tracker) RecordAction(
	msg model.EmailMessage, action model.RuleAction, ruleName string,
) {
	record := ActionRecord{
		ID:             uuid.NewString(),
		Timestamp:      t.now(),
		ActionType:     action.Type,
		MessageID:      msg.MessageID,
		MessageSubject: msg.Subject,
		Sender:         msg.Sender,
		RuleName:       ruleName,
		Details:        action.Parameters,
	}

	data := t.load()
	data.Actions = append(data.Actions, record)
	t.save(data)

	t.log.Debug("Recorded action",
		"action_type", action.Type, "subject", msg.Subject,
	)
}

// ActionsForDay returns all records with a timestamp within
// [day 00:00:00, day 23:59:59] inclusive, local time.
func (t *Tracker) ActionsForDay(day time.Time) []ActionRecord {
	start := time.Date(
		day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location(),
	)
	end := time.Date(
		day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location(),
	)

	var result []ActionRecord
	for _, record := range t.load().Actions {
		ts := record.Timestamp
		if !ts.Before(start) && !ts.After(end) {
			result = append(result, record)
		}
	}

	return result
}

// ClearOldActions removes records older than daysToKeep and returns
// the removed count.
func (t *Tracker) ClearOldActions(daysToKeep int) int {
	cutoff := t.now().AddDate(0, 0, -daysToKeep)

	data := t.load()

	kept := data.Actions[:0]
	removed := 0
	for _, record := range data.Actions {
		if record.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	data.Actions = kept

	t.save(data)
	t.log.Info("Cleared old actions", "removed", removed)

	return removed
}

// SendDailyReport generates the digest for the given day (zero means
// yesterday) in text and HTML, connects the mailbox if needed, and
// sends it to recipient. On success the store's last-report date
// advances to today. Returns false, without an error, on any failure.
func (t *Tracker) SendDailyReport(
	ctx context.Context,
	mailbox provider.Mailbox,
	recipient string,
	day time.Time,
) bool {
	if day.IsZero() {
		day = t.now().AddDate(0, 0, -1)
	}

	dateStr := day.Format("January 02, 2006")
	reportText := t.GenerateDailyReport(day, FormatText)
	reportHTML := t.GenerateDailyReport(day, FormatHTML)

	if !mailbox.IsConnected() {
		if err := mailbox.Connect(ctx); err != nil {
			t.log.Error("Failed to connect to email provider", "error", err)
			return false
		}
	}

	subject := "StopPls Daily Report: " + dateStr

	ok, err := mailbox.SendEmail(ctx, recipient, subject, reportText, reportHTML)
	if err != nil {
		t.log.Error("Error sending daily report", "error", err)
		return false
	}
	if !ok {
		t.log.Error("Failed to send daily report", "date", dateStr)
		return false
	}

	t.log.Info("Sent daily report", "date", dateStr, "recipient", recipient)

	data := t.load()
	data.LastReportDate = t.now().Format("2006-01-02")
	t.save(data)

	return true
}

// CheckAndSendDailyReport sends a report covering yesterday when one
// is due: current local time is at or past the configured report time
// and no report has been sent today. Cheap no-op otherwise; safe to
// call every poll cycle. Reports whether a report was sent.
func (t *Tracker) CheckAndSendDailyReport(
	ctx context.Context, mailbox provider.Mailbox, recipient string,
) bool {
	now := t.now()

	due := time.Date(
		now.Year(), now.Month(), now.Day(),
		t.reportHour, t.reportMinute, 0, 0, now.Location(),
	)
	if now.Before(due) {
		return false
	}

	if last := t.lastReportDate(); !last.IsZero() {
		today := time.Date(
			now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location(),
		)
		if !last.Before(today) {
			return false
		}
	}

	yesterday := now.AddDate(0, 0, -1)
	return t.SendDailyReport(ctx, mailbox, recipient, yesterday)
}

// lastReportDate returns the date the last report was sent, or the
// zero time when none has been.
func (t *Tracker) lastReportDate() time.Time {
	data := t.load()
	if data.LastReportDate == "" {
		return time.Time{}
	}

	parsed, err := time.ParseInLocation(
		"2006-01-02", data.LastReportDate, t.now().Location(),
	)
	if err != nil {
		t.log.Error("Invalid last report date",
			"value", data.LastReportDate, "error", err,
		)
		return time.Time{}
	}

	return parsed
}
