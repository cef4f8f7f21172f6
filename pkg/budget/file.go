package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// DefaultFile is the budget record path used when none is configured.
const DefaultFile = "request_budget.json"

// FileStore keeps the budget record as indented JSON on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the record from disk.
func (s *FileStore) Load(_ context.Context) (models.BudgetRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.BudgetRecord{}, ErrNoRecord
		}
		return models.BudgetRecord{}, fmt.Errorf("read budget: %w", err)
	}
	var rec models.BudgetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.BudgetRecord{}, fmt.Errorf("parse budget: %w", err)
	}
	return rec, nil
}

// Save writes the record to a temp file and renames it over the old one.
func (s *FileStore) Save(_ context.Context, rec models.BudgetRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".budget-*.json")
	if err != nil {
		return fmt.Errorf("write budget: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write budget: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write budget: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write budget: %w", err)
	}
	return nil
}
