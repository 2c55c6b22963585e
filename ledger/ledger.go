// Package ledger persists one record per downloaded mod in a single JSON file.
//
// The file is rewritten wholesale on every upsert through a temp file and
// rename, so readers see either the old or the new ledger and never a torn one.
// A file that fails to parse is logged and treated as empty.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record describes the last successful download of a mod.
type Record struct {
	ModID        int       `json:"modId"`
	ModName      string    `json:"modName"`
	FileID       int       `json:"fileId"`
	FileName     string    `json:"fileName"`
	FilePath     string    `json:"filePath"`
	DownloadDate time.Time `json:"downloadDate"`
	FileSize     int64     `json:"fileSize"`
	GameVersions []string  `json:"gameVersions"`
}

// CorruptError reports a ledger file that exists but cannot be parsed.
// It is logged and never returned.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// WriteError reports a failure to persist the ledger.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Ledger is safe for concurrent use within one process. It does not lock
// against other processes.
type Ledger struct {
	path string
	log  *zap.SugaredLogger
	mu   sync.Mutex
}

type Option func(*Ledger)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// New returns a ledger backed by path. Nothing is read or created until the
// first call.
func New(path string, opts ...Option) *Ledger {
	l := &Ledger{path: path, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Path() string { return l.path }

// Upsert replaces any record with the same ModID and appends rec.
func (l *Ledger) Upsert(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.ModID != rec.ModID {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rec)

	if err := l.save(kept); err != nil {
		return err
	}
	l.log.Infow("Ledger updated",
		zap.Int("mod_id", rec.ModID),
		zap.String("file", rec.FileName),
		zap.Int("records", len(kept)))
	return nil
}

// All returns the persisted records in file order.
func (l *Ledger) All() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *Ledger) Lookup(modID int) (Record, bool, error) {
	records, err := l.All()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.ModID == modID {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// load must be called with mu held.
func (l *Ledger) load() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", l.path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		corrupt := &CorruptError{Path: l.path, Err: err}
		l.log.Warnw("Ignoring unreadable ledger, starting fresh", zap.Error(corrupt))
		return []Record{}, nil
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// save must be called with mu held.
func (l *Ledger) save(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return &WriteError{Op: "create", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &WriteError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return &WriteError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return &WriteError{Op: "rename", Path: l.path, Err: err}
	}
	renamed = true
	return nil
}
