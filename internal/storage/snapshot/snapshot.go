// Package snapshot persists an index generation as one JSON document.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/storage"
)

type Store struct {
	path string
}

var _ storage.IndexStore = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (*models.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrNotIndexed
	}
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", s.path, err)
	}
	var idx models.Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", s.path, err)
	}
	if idx.Files == nil {
		idx.Files = map[string]models.FileRecord{}
	}
	if idx.Symbols == nil {
		idx.Symbols = map[string]models.SymbolRecord{}
	}
	if idx.CallGraph == nil {
		idx.CallGraph = map[string]models.CallGraphEntry{}
	}
	return &idx, nil
}

// Save writes idx to a temporary file next to the target and renames it
// into place.
func (s *Store) Save(ctx context.Context, idx *models.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace index %s: %w", s.path, err)
	}
	return nil
}
