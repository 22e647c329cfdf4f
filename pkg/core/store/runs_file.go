package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"corp_finance/pkg/core/logger"
)

// FileRunStore keeps one JSON file per run. It is the local fallback when no
// database is configured.
type FileRunStore struct {
	mu      sync.RWMutex
	fileDir string
}

// NewFileRunStore creates the store, defaulting dir to .cache/clo/runs.
func NewFileRunStore(dir string) (*FileRunStore, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "clo", "runs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run dir: %w", err)
	}
	return &FileRunStore{fileDir: dir}, nil
}

// Dir is the directory runs are written to.
func (s *FileRunStore) Dir() string { return s.fileDir }

// Save writes the run, replacing any earlier file with the same id.
func (s *FileRunStore) Save(ctx context.Context, rec *RunRecord) error {
	path, err := s.runPath(rec.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to save to file store: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a run by id.
func (s *FileRunStore) Load(ctx context.Context, id string) (*RunRecord, error) {
	path, err := s.runPath(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := loadEntry(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return rec, err
}

// List scans the directory. Unreadable files are skipped.
func (s *FileRunStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.fileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run dir: %w", err)
	}

	var out []RunSummary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := loadEntry(filepath.Join(s.fileDir, e.Name()))
		if err != nil {
			logger.Get().Warn("[STORE] skipping unreadable run file", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, rec.Summary())
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileRunStore) runPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(s.fileDir, id+".json"), nil
}

func loadEntry(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &rec, nil
}
