package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CheckpointManager records which routes of a target have been persisted so
// an interrupted crawl can resume without scraping them again.
type CheckpointManager struct {
	path string
	mu   sync.Mutex
	done map[string]struct{}
}

// checkpointData is the serializable crawl state.
type checkpointData struct {
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Completed []string  `json:"completed_routes"`
}

// NewCheckpointManager creates a manager storing <dir>/<target>.json.
func NewCheckpointManager(dir, target string) *CheckpointManager {
	return &CheckpointManager{
		path: filepath.Join(dir, target+".json"),
		done: make(map[string]struct{}),
	}
}

// Path returns the checkpoint file location.
func (cm *CheckpointManager) Path() string { return cm.path }

// Load restores completed routes from disk. A missing file is not an error.
func (cm *CheckpointManager) Load() error {
	f, err := os.Open(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var data checkpointData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, u := range data.Completed {
		cm.done[CanonicalizeURL(u)] = struct{}{}
	}
	return nil
}

// IsDone reports whether the route was persisted by this or an earlier run.
func (cm *CheckpointManager) IsDone(routeURL string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.done[CanonicalizeURL(routeURL)]
	return ok
}

// MarkDone records a persisted route and saves the checkpoint.
func (cm *CheckpointManager) MarkDone(routeURL string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.done[CanonicalizeURL(routeURL)] = struct{}{}
	return cm.saveLocked()
}

// Len returns the number of completed routes.
func (cm *CheckpointManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.done)
}

// Clean forgets every completed route and removes the checkpoint file.
func (cm *CheckpointManager) Clean() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.done = make(map[string]struct{})
	if err := os.Remove(cm.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (cm *CheckpointManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data := checkpointData{
		Target:    trimExt(filepath.Base(cm.path)),
		Timestamp: time.Now().UTC(),
		Completed: make([]string, 0, len(cm.done)),
	}
	for u := range cm.done {
		data.Completed = append(data.Completed, u)
	}
	sort.Strings(data.Completed)

	// Write to temp file, then rename (atomic write)
	tmpPath := cm.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, cm.path); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
