package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/paveg/procfake/internal/process"
	"github.com/paveg/procfake/internal/scenario"
)

// Static error variables to satisfy err113 linter
var (
	ErrNoVersionInfo      = errors.New("transcript has no version information")
	ErrUnsupportedVersion = errors.New("unsupported transcript version")
	ErrNoRunID            = errors.New("transcript has no run ID")
	ErrInvocationNoArgs   = errors.New("invocation has no arguments")
	ErrTranscriptZeroTime = errors.New("transcript has zero creation time")
	ErrNoTranscript       = errors.New("no transcript loaded")
)

// CurrentVersion is the transcript format written by this build
const CurrentVersion = "1.0"

// Transcript is the persisted record of one replay
type Transcript struct {
	Metadata    *Metadata            `json:"metadata"`
	Invocations []process.Invocation `json:"invocations"`
	Report      *scenario.Report     `json:"report,omitempty"`
}

// Metadata contains information about the transcript file
type Metadata struct {
	Version   string    `json:"version"`
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTranscript wraps a replay report with fresh metadata
func NewTranscript(scenarioPath string, report *scenario.Report) *Transcript {
	now := time.Now()
	t := &Transcript{
		Metadata: &Metadata{
			Version:   CurrentVersion,
			RunID:     uuid.New().String(),
			Scenario:  scenarioPath,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Report: report,
	}
	if report != nil {
		t.Invocations = report.Invocations
	}
	return t
}

// Verify checks the transcript's calls against expected command lines
func (t *Transcript) Verify(expected []string) error {
	return process.VerifyInvocations(t.Invocations, expected)
}

// JSONStore persists a Transcript as a JSON file
type JSONStore struct {
	filePath string
	data     *Transcript
}

// NewJSONStore creates a new JSON-based transcript store
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{filePath: filePath}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	// Load existing data if file exists
	if _, err := os.Stat(filePath); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load existing transcript: %w", err)
		}
	}

	return store, nil
}

// Save persists the transcript to the JSON file
func (js *JSONStore) Save(t *Transcript) error {
	if t.Metadata == nil {
		t.Metadata = &Metadata{Version: CurrentVersion, RunID: uuid.New().String(), CreatedAt: time.Now()}
	}
	t.Metadata.UpdatedAt = time.Now()
	js.data = t

	// Marshal to JSON with indentation for readability
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempFile := js.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp transcript file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, js.filePath); err != nil {
		_ = os.Remove(tempFile) //nolint:errcheck // Best effort cleanup of temp file
		return fmt.Errorf("failed to rename transcript file: %w", err)
	}

	return nil
}

// Load reads the transcript from the JSON file
func (js *JSONStore) Load() (*Transcript, error) {
	if err := js.load(); err != nil {
		return nil, err
	}
	return js.data, nil
}

// load is the internal method to load data from file
func (js *JSONStore) load() error {
	data, err := os.ReadFile(js.filePath)
	if err != nil {
		return fmt.Errorf("failed to read transcript file: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	js.data = &t

	return nil
}

// GetFilePath returns the file path being used
func (js *JSONStore) GetFilePath() string {
	return js.filePath
}

// GetMetadata returns the metadata of the loaded transcript
func (js *JSONStore) GetMetadata() *Metadata {
	if js.data == nil {
		return nil
	}
	return js.data.Metadata
}

// ValidateState performs validation on the loaded transcript
func (js *JSONStore) ValidateState() error {
	if js.data == nil {
		return ErrNoTranscript
	}

	meta := js.data.Metadata
	if meta == nil || meta.Version == "" {
		return ErrNoVersionInfo
	}
	if meta.Version != CurrentVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, meta.Version)
	}
	if meta.RunID == "" {
		return ErrNoRunID
	}
	if meta.CreatedAt.IsZero() {
		return ErrTranscriptZeroTime
	}

	for i, inv := range js.data.Invocations {
		if len(inv.Args) == 0 {
			return fmt.Errorf("%w: invocation %d", ErrInvocationNoArgs, i+1)
		}
	}

	return nil
}

// BackupState copies the current transcript file aside before it is overwritten.
// It returns the backup path, or "" when there was nothing to back up.
func (js *JSONStore) BackupState() (string, error) {
	if _, err := os.Stat(js.filePath); os.IsNotExist(err) {
		return "", nil // No transcript to backup
	}

	backupPath := js.filePath + ".backup." + time.Now().Format("20060102-150405.000")

	data, err := os.ReadFile(js.filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript for backup: %w", err)
	}

	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	return backupPath, nil
}
