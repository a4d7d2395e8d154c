package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// migration is a single versioned schema change.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);
			INSERT INTO schema_version (version) VALUES (1);

			CREATE TABLE IF NOT EXISTS actions (
				id TEXT PRIMARY KEY,
				timestamp DATETIME NOT NULL,
				action_type TEXT NOT NULL,
				message_id TEXT NOT NULL,
				message_subject TEXT NOT NULL,
				sender TEXT NOT NULL,
				rule_name TEXT NOT NULL,
				details TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_actions_timestamp
				ON actions(timestamp);

			CREATE TABLE IF NOT EXISTS report_state (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				last_report_date TEXT
			);
			INSERT INTO report_state (id, last_report_date)
				VALUES (1, NULL);
		`,
	},
}

// SQLiteStore keeps the action store in a local SQLite database. It
// implements the same whole-document Store contract as FileStore and
// exists for installations where action volume makes rewriting a JSON
// file on every record too costly.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// actionRow mirrors the actions table.
type actionRow struct {
	ID             string    `db:"id"`
	Timestamp      time.Time `db:"timestamp"`
	ActionType     string    `db:"action_type"`
	MessageID      string    `db:"message_id"`
	MessageSubject string    `db:"message_subject"`
	Sender         string    `db:"sender"`
	RuleName       string    `db:"rule_name"`
	Details        string    `db:"details"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(
			&currentVersion,
			"SELECT COALESCE(MAX(version), 0) FROM schema_version",
		)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Load reads the full action log and report state.
func (s *SQLiteStore) Load() (*StoreData, error) {
	var rows []actionRow
	err := s.db.Select(
		&rows, "SELECT * FROM actions ORDER BY timestamp, id",
	)
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}

	data := &StoreData{}
	for _, row := range rows {
		record := ActionRecord{
			ID:             row.ID,
			Timestamp:      row.Timestamp,
			ActionType:     row.ActionType,
			MessageID:      row.MessageID,
			MessageSubject: row.MessageSubject,
			Sender:         row.Sender,
			RuleName:       row.RuleName,
		}
		if err := json.Unmarshal([]byte(row.Details), &record.Details); err != nil {
			return nil, fmt.Errorf(
				"parsing details for action %s: %w", row.ID, err,
			)
		}
		data.Actions = append(data.Actions, record)
	}

	var lastReport *string
	err = s.db.Get(
		&lastReport,
		"SELECT last_report_date FROM report_state WHERE id = 1",
	)
	if err != nil {
		return nil, fmt.Errorf("loading report state: %w", err)
	}
	if lastReport != nil {
		data.LastReportDate = *lastReport
	}

	return data, nil
}

// Save replaces the stored action log and report state with the given
// document, in one transaction.
func (s *SQLiteStore) Save(data *StoreData) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM actions"); err != nil {
		return fmt.Errorf("clearing actions: %w", err)
	}

	const insert = `
		INSERT INTO actions (
			id, timestamp, action_type, message_id,
			message_subject, sender, rule_name, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.Preparex(insert)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range data.Actions {
		details, err := json.Marshal(record.Details)
		if err != nil {
			return fmt.Errorf(
				"marshaling details for action %s: %w", record.ID, err,
			)
		}

		_, err = stmt.Exec(
			record.ID, record.Timestamp.UTC(), record.ActionType,
			record.MessageID, record.MessageSubject, record.Sender,
			record.RuleName, string(details),
		)
		if err != nil {
			return fmt.Errorf("inserting action %s: %w", record.ID, err)
		}
	}

	var lastReport *string
	if data.LastReportDate != "" {
		lastReport = &data.LastReportDate
	}
	_, err = tx.Exec(
		"UPDATE report_state SET last_report_date = ? WHERE id = 1",
		lastReport,
	)
	if err != nil {
		return fmt.Errorf("updating report state: %w", err)
	}

	return tx.Commit()
}
