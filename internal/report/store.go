package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ActionRecord is a persisted log entry confirming a successfully
// executed action. Records are append-only and never mutated; they
// are pruned only by the retention operation.
type ActionRecord struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	ActionType     string            `json:"action_type"`
	MessageID      string            `json:"message_id"`
	MessageSubject string            `json:"message_subject"`
	Sender         string            `json:"sender"`
	RuleName       string            `json:"rule_name"`
	Details        map[string]string `json:"details"`
}

// StoreData is the persisted action store: the full record log plus
// the date the last daily report was sent ("2006-01-02", empty when
// none has been sent).
type StoreData struct {
	Actions        []ActionRecord `json:"actions"`
	LastReportDate string         `json:"last_report_date,omitempty"`
}

// Store persists the action store as a whole document. The design
// assumes a single writer; implementations provide no cross-process
// locking.
type Store interface {
	Load() (*StoreData, error)
	Save(*StoreData) error
}

// FileStore keeps the action store in a single JSON file, read and
// rewritten in full on every operation. Acceptable for personal
// mailbox volume.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at path, creating parent
// directories and an empty store file if needed.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}

	s := &FileStore{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.Save(&StoreData{}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Load reads the whole store. A missing file yields an empty store.
func (s *FileStore) Load() (*StoreData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StoreData{}, nil
		}
		return nil, fmt.Errorf("reading action store %s: %w", s.path, err)
	}

	data := &StoreData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("parsing action store %s: %w", s.path, err)
	}

	return data, nil
}

// Save rewrites the whole store.
func (s *FileStore) Save(data *StoreData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding action store: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing action store %s: %w", s.path, err)
	}

	return nil
}
