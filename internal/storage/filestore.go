package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// SourceStore reads snapshots of raw source entities and applies user
// actions back to them.
type SourceStore interface {
	Load(ctx context.Context, st models.SourceType) ([]models.Source, error)
	Save(ctx context.Context, st models.SourceType, items []models.Source) error
	Resolve(ctx context.Context, st models.SourceType, sourceID string) error
	Snooze(ctx context.Context, st models.SourceType, sourceID string, until time.Time) error
}

// fileSourceStore keeps one YAML file per source type under a directory,
// e.g. sources/task.yaml.
type fileSourceStore struct {
	dir   string
	clock func() time.Time
	mu    sync.Mutex
}

// NewFileSourceStore creates a SourceStore backed by YAML files in dir.
// clock stamps resolutions and defaults to time.Now.
func NewFileSourceStore(dir string, clock func() time.Time) SourceStore {
	if clock == nil {
		clock = time.Now
	}
	return &fileSourceStore{dir: dir, clock: clock}
}

func (s *fileSourceStore) filePath(st models.SourceType) string {
	return filepath.Join(s.dir, string(st)+".yaml")
}

// Load returns every entity in the snapshot for st. A missing file is an
// empty snapshot, not an error.
func (s *fileSourceStore) Load(ctx context.Context, st models.SourceType) ([]models.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := kindFor(st)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(st))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading %s snapshot: %w", st, err)
	}
	items, err := k.decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s snapshot: parsing YAML: %w", st, err)
	}
	return items, nil
}

// Save replaces the snapshot for st.
func (s *fileSourceStore) Save(ctx context.Context, st models.SourceType, items []models.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := kindFor(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(k, st, items)
}

func (s *fileSourceStore) write(k kind, st models.SourceType, items []models.Source) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("saving %s snapshot: creating directory: %w", st, err)
	}
	data, err := k.encodeList(items)
	if err != nil {
		return fmt.Errorf("saving %s snapshot: marshaling YAML: %w", st, err)
	}
	tmp := s.filePath(st) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("saving %s snapshot: writing file: %w", st, err)
	}
	if err := os.Rename(tmp, s.filePath(st)); err != nil {
		return fmt.Errorf("saving %s snapshot: replacing file: %w", st, err)
	}
	return nil
}

// Resolve marks the entity done, read or contacted according to its type.
func (s *fileSourceStore) Resolve(ctx context.Context, st models.SourceType, sourceID string) error {
	return s.update(ctx, st, sourceID, resolveAction(s.clock()))
}

// Snooze hides the entity until the given time. Calendar events cannot be snoozed.
func (s *fileSourceStore) Snooze(ctx context.Context, st models.SourceType, sourceID string, until time.Time) error {
	return s.update(ctx, st, sourceID, snoozeAction(until))
}

func (s *fileSourceStore) update(ctx context.Context, st models.SourceType, sourceID string, apply action) error {
	k, err := kindFor(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("updating %s snapshot: creating directory: %w", st, err)
	}
	unlock, err := lockFile(s.filePath(st))
	if err != nil {
		return fmt.Errorf("updating %s snapshot: %w", st, err)
	}
	defer func() { _ = unlock() }()

	items, err := s.Load(ctx, st)
	if err != nil {
		return err
	}
	for i, src := range items {
		if src.SourceKey() != sourceID {
			continue
		}
		updated, err := apply(src)
		if err != nil {
			return err
		}
		items[i] = updated
		return s.write(k, st, items)
	}
	return fmt.Errorf("%s %s: %w", st, sourceID, ErrNotFound)
}

// Fetcher adapts one source type of a SourceStore to the engine's fetcher
// contract.
type Fetcher struct {
	Store SourceStore
	Type  models.SourceType
}

// NewFetchers returns one Fetcher per source type.
func NewFetchers(store SourceStore, types ...models.SourceType) []Fetcher {
	out := make([]Fetcher, 0, len(types))
	for _, st := range types {
		out = append(out, Fetcher{Store: store, Type: st})
	}
	return out
}

// SourceType reports the type this fetcher loads.
func (f Fetcher) SourceType() models.SourceType { return f.Type }

// Fetch loads the current snapshot.
func (f Fetcher) Fetch(ctx context.Context) ([]models.Source, error) {
	return f.Store.Load(ctx, f.Type)
}
