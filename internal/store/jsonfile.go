package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/google/renameio/v2"
)

// JSONFile stores a JSON array on disk. Every Append loads the whole array,
// appends, and atomically rewrites the file.
//
// A file that does not decode as an array is renamed to
// "<path>.corrupt-<unix nanos>" and the collection restarts empty.
type JSONFile[T domain.Keyed] struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewJSONFile returns a store backed by path. The file is created on first Append.
func NewJSONFile[T domain.Keyed](path string, logger *slog.Logger) *JSONFile[T] {
	return &JSONFile[T]{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *JSONFile[T]) Path() string { return s.path }

func (s *JSONFile[T]) Append(_ context.Context, item T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return false, err
	}
	key := item.Key()
	for _, existing := range items {
		if existing.Key() == key {
			return false, nil
		}
	}
	items = append(items, item)
	if err := s.write(items); err != nil {
		return false, err
	}
	return true, nil
}

// AppendMany appends every item not already stored with a single rewrite and
// returns how many were added.
func (s *JSONFile[T]) AppendMany(_ context.Context, batch []T) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, err
	}
	seen := make(map[domain.Key]struct{}, len(items)+len(batch))
	for _, existing := range items {
		seen[existing.Key()] = struct{}{}
	}
	added := 0
	for _, item := range batch {
		k := item.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, item)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.write(items); err != nil {
		return 0, err
	}
	return added, nil
}

func (s *JSONFile[T]) All(_ context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONFile[T]) Contains(_ context.Context, key domain.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return false, err
	}
	for _, existing := range items {
		if existing.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONFile[T]) load() ([]T, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, domain.Now().UnixNano())
		s.logger.Warn("malformed store file, starting empty",
			"path", s.path, "moved_to", aside, "error", err)
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return nil, fmt.Errorf("move aside malformed %s: %w", s.path, rerr)
		}
		return nil, nil
	}
	return items, nil
}

func (s *JSONFile[T]) write(items []T) error {
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", s.path, err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
