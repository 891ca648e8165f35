package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"flickrdump/pkg/logger"
)

const (
	stateVersion = 1
	stateMagic   = "FLICKRDUMP_STATE"

	// StateFileName is the tracker file kept under the destination root.
	StateFileName = ".flickrdump_state.json"
	// LockFileName guards the destination against concurrent runs.
	LockFileName = ".flickrdump.lock"
)

// FetchRecord is the persisted completion state for one item. Records are
// created on first attempt and never deleted; a failed record keeps its
// cause so a re-run can retry exactly the failures.
type FetchRecord struct {
	ID           string    `json:"id"`
	AssetPath    string    `json:"asset_path"`
	MetadataPath string    `json:"metadata_path"`
	Complete     bool      `json:"complete"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type stateFile struct {
	Version int           `json:"version"`
	Magic   string        `json:"magic"`
	Saved   time.Time     `json:"saved"`
	Records []FetchRecord `json:"records"`
}

// Tracker is the durable record of which items have been fully fetched.
// Mutations are serialized through a single lock and every mutation is
// persisted with an atomic replace, so a crash between calls never leaves
// the file claiming completion for work that did not finish.
type Tracker struct {
	path string
	lock *flock.Flock
	log  logger.Logger

	mu      sync.RWMutex
	records map[string]FetchRecord
}

// Open loads (or creates) the tracker under the destination root and takes
// the destination lock. A second process opening the same root gets an
// error rather than interleaved state writes.
func Open(root string, log logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	lock := flock.New(filepath.Join(root, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire destination lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("destination %s is in use by another run", root)
	}

	t := &Tracker{
		path:    filepath.Join(root, StateFileName),
		lock:    lock,
		log:     log,
		records: make(map[string]FetchRecord),
	}

	if err := t.load(); err != nil {
		lock.Unlock()
		return nil, err
	}

	return t, nil
}

// Close releases the destination lock.
func (t *Tracker) Close() error {
	return t.lock.Unlock()
}

// IsComplete reports whether the item has been fully fetched.
func (t *Tracker) IsComplete(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return ok && rec.Complete
}

// Get returns the record for an item, if one exists.
func (t *Tracker) Get(id string) (FetchRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// MarkComplete records that both files for the item are in place. Callers
// must only invoke this after the atomic file placement succeeded.
func (t *Tracker) MarkComplete(rec FetchRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.Complete = true
	rec.LastError = ""
	rec.UpdatedAt = time.Now().UTC()
	t.records[rec.ID] = rec

	return t.save()
}

// MarkFailed records a failed attempt with its cause. An already complete
// record is left untouched; a late failure cannot undo completion.
func (t *Tracker) MarkFailed(id string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.records[id]
	if rec.Complete {
		return nil
	}
	rec.ID = id
	rec.LastError = cause.Error()
	rec.UpdatedAt = time.Now().UTC()
	t.records[id] = rec

	return t.save()
}

// All returns every record, ordered by identifier for stable reporting.
func (t *Tracker) All() []FetchRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]FetchRecord, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// CompletedCount returns how many records are complete.
func (t *Tracker) CompletedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rec := range t.records {
		if rec.Complete {
			n++
		}
	}
	return n
}

func (t *Tracker) load() error {
	content, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(content, &state); err != nil {
		return fmt.Errorf("failed to decode state file: %w", err)
	}
	if state.Magic != stateMagic {
		return fmt.Errorf("not a flickrdump state file: %s", t.path)
	}
	if state.Version != stateVersion {
		return fmt.Errorf("unsupported state file version: %d", state.Version)
	}

	for _, rec := range state.Records {
		if _, exists := t.records[rec.ID]; exists {
			return fmt.Errorf("duplicate record for item %s", rec.ID)
		}
		t.records[rec.ID] = rec
	}

	t.log.InfoWithFields("tracker state loaded", map[string]interface{}{
		"path":    t.path,
		"records": len(t.records),
	})

	return nil
}

// save writes the state file atomically: temp file, fsync, rename. Callers
// hold t.mu.
func (t *Tracker) save() error {
	state := stateFile{
		Version: stateVersion,
		Magic:   stateMagic,
		Saved:   time.Now().UTC(),
		Records: make([]FetchRecord, 0, len(t.records)),
	}
	for _, rec := range t.records {
		state.Records = append(state.Records, rec)
	}
	sort.Slice(state.Records, func(i, j int) bool { return state.Records[i].ID < state.Records[j].ID })

	tempPath := t.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
