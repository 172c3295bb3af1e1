package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Outcome summarises how a run ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePartial marks a completed run in which at least one branch or
	// target failed.
	OutcomePartial Outcome = "partial"
	OutcomeAborted Outcome = "aborted"
)

// TargetRecord captures one target configuration executed for one provider.
type TargetRecord struct {
	ID       string   `json:"id"`
	Backend  string   `json:"backend"`
	Provider string   `json:"provider"`
	Packages []string `json:"packages,omitempty"`
}

// Record stores the metadata of the last pipeline run.
type Record struct {
	RunID         string         `json:"runId"`
	Configuration string         `json:"configuration"`
	Outcome       Outcome        `json:"outcome"`
	Error         string         `json:"error,omitempty"`
	Ignored       []string       `json:"ignored,omitempty"`
	Failed        []string       `json:"failed,omitempty"`
	Targets       []TargetRecord `json:"targets,omitempty"`
	Deferred      []string       `json:"deferred,omitempty"`
	OutputFiles   int            `json:"outputFiles"`
	Timestamp     string         `json:"timestamp"`
}

// Overrides defines user-supplied preferences for the state file location.
type Overrides struct {
	StateDirectory string
	StateFileName  string
}

// PathResolver resolves the effective filesystem path for the state file.
type PathResolver interface {
	Resolve(Overrides) (string, error)
}

// Manager coordinates persistence of run records.
type Manager struct {
	resolver PathResolver
	dirPerm  os.FileMode
	filePerm os.FileMode
}

var (
	// ErrWriteFailed wraps every failure to persist a record.
	ErrWriteFailed = errors.New("state file could not be written")
	// ErrNoRecord is returned by Read when no run has been recorded yet.
	ErrNoRecord = errors.New("no run recorded")

	errPathResolverMissing = errors.New("state path resolver not configured")
	errEmptyStatePath      = errors.New("resolved state file path empty")
)

// NewManager constructs a Manager with the provided resolver.
func NewManager(resolver PathResolver) *Manager {
	return &Manager{
		resolver: resolver,
		dirPerm:  0o700,
		filePerm: 0o600,
	}
}

func (m *Manager) resolvePath(overrides Overrides) (string, error) {
	if m == nil || m.resolver == nil {
		return "", errPathResolverMissing
	}
	path, err := m.resolver.Resolve(overrides)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", errEmptyStatePath
	}
	return path, nil
}

// Write persists the record atomically to the resolved state path.
func (m *Manager) Write(record Record, overrides Overrides) (string, error) {
	path, err := m.resolvePath(overrides)
	if err != nil {
		return "", err
	}

	if record.Timestamp == "" {
		record.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	dir := filepath.Dir(path)
	if _, statErr := os.Stat(dir); statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, statErr)
		}
		if err := os.MkdirAll(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		if err := os.Chmod(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "run-*.json")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(m.filePerm); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return path, nil
}

// Read returns the last persisted record.
func (m *Manager) Read(overrides Overrides) (Record, error) {
	path, err := m.resolvePath(overrides)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("read state %s: %w", path, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode state %s: %w", path, err)
	}
	return record, nil
}
