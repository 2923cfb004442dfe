// Package history keeps an append-only ledger of run summaries so repeated
// analyses can be trended over time: spend velocity, acceleration and
// budget-exhaustion alerts between runs.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one recorded run summary.
type Entry struct {
	Timestamp             int64   `json:"timestamp"`
	Provider              string  `json:"provider"`
	TotalCost             float64 `json:"total_cost"`
	RiskScore             float64 `json:"risk_score"`
	AnomalyCount          int     `json:"anomaly_count"`
	ViolationCount        int     `json:"violation_count"`
	OptimizationPotential float64 `json:"optimization_potential"`
}

// Backend is the storage behind the ledger.
type Backend interface {
	Append(e Entry) error
	Load(n int) ([]Entry, error)
}

// Ledger records and replays run summaries.
type Ledger struct {
	backend Backend
}

// NewLedger wraps a backend; nil means the default file ledger under the
// user's home directory.
func NewLedger(backend Backend) *Ledger {
	if backend == nil {
		backend = &FileBackend{}
	}
	return &Ledger{backend: backend}
}

// Record appends one run summary.
func (l *Ledger) Record(e Entry) error {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	return l.backend.Append(e)
}

// Window returns the most recent n entries, oldest first.
func (l *Ledger) Window(n int) ([]Entry, error) {
	return l.backend.Load(n)
}

// FileBackend appends entries as JSON lines to a single file.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) resolvePath() (string, error) {
	if b.Path != "" {
		return b.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".opsyield", "runs.jsonl"), nil
}

func (b *FileBackend) Append(e Entry) error {
	path, err := b.resolvePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (b *FileBackend) Load(n int) ([]Entry, error) {
	path, err := b.resolvePath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		// Corrupt lines are skipped so one bad write cannot poison the ledger.
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if n > 0 && len(entries) > n {
		return entries[len(entries)-n:], nil
	}
	return entries, nil
}
