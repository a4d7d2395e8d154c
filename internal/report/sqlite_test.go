package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/stoppls/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreEmpty(t *testing.T) {
	store := newTestSQLiteStore(t)

	data, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Actions)
	assert.Empty(t, data.LastReportDate)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	in := &StoreData{
		Actions: []ActionRecord{
			{
				ID:             "id-1",
				Timestamp:      time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
				ActionType:     "reply",
				MessageID:      "<msg-1@example.com>",
				MessageSubject: "Job opportunity",
				Sender:         "recruiter@example.com",
				RuleName:       "Recruiters",
				Details:        map[string]string{"text": "No thanks."},
			},
			{
				ID:             "id-2",
				Timestamp:      time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
				ActionType:     "archive",
				MessageID:      "<msg-1@example.com>",
				MessageSubject: "Job opportunity",
				Sender:         "recruiter@example.com",
				RuleName:       "Recruiters",
			},
		},
		LastReportDate: "2026-08-23",
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)

	require.Len(t, out.Actions, 2)
	assert.Equal(t, "id-1", out.Actions[0].ID)
	assert.Equal(t, "reply", out.Actions[0].ActionType)
	assert.Equal(t, "No thanks.", out.Actions[0].Details["text"])
	assert.True(t, out.Actions[0].Timestamp.Equal(in.Actions[0].Timestamp))
	assert.Equal(t, "id-2", out.Actions[1].ID)
	assert.Equal(t, "2026-08-23", out.LastReportDate)
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	store := newTestSQLiteStore(t)

	first := &StoreData{Actions: []ActionRecord{{
		ID: "id-1", Timestamp: time.Now().UTC(), ActionType: "reply",
		MessageID: "a", MessageSubject: "s", Sender: "x", RuleName: "r",
	}}}
	require.NoError(t, store.Save(first))

	second := &StoreData{Actions: []ActionRecord{{
		ID: "id-2", Timestamp: time.Now().UTC(), ActionType: "archive",
		MessageID: "a", MessageSubject: "s", Sender: "x", RuleName: "r",
	}}}
	require.NoError(t, store.Save(second))

	out, err := store.Load()
	require.NoError(t, err)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, "id-2", out.Actions[0].ID)
}

func TestSQLiteStoreWorksWithTracker(t *testing.T) {
	store := newTestSQLiteStore(t)

	tracker, err := NewTracker(store, "", nil)
	require.NoError(t, err)

	tracker.RecordAction(
		model.EmailMessage{
			MessageID: "<msg-1@example.com>",
			Subject:   "Job opportunity",
			Sender:    "recruiter@example.com",
		},
		replyAction("No thanks."), "Recruiters",
	)

	actions := tracker.ActionsForDay(time.Now())
	require.Len(t, actions, 1)
	assert.Equal(t, "reply", actions[0].ActionType)
}
