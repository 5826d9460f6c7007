package storage

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/attention/pkg/models"
)

// ImportMode selects how imported rows combine with a store's existing rows.
type ImportMode int

const (
	// ImportMerge inserts new rows and replaces rows with a matching id.
	ImportMerge ImportMode = iota
	// ImportReplace discards every existing row of the source type first.
	ImportReplace
)

// upserter is implemented by stores that can write one row in place.
type upserter interface {
	Upsert(ctx context.Context, src models.Source) error
}

// DecodeSnapshot parses a snapshot in the same YAML layout the file store
// writes: a version line and an items list of st rows.
func DecodeSnapshot(st models.SourceType, data []byte) ([]models.Source, error) {
	k, err := kindFor(st)
	if err != nil {
		return nil, err
	}
	items, err := k.decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s snapshot: %w", st, err)
	}
	return items, nil
}

// Import writes rows of type st into store and returns how many distinct
// rows were written. Rows without an id are rejected. When the input holds
// the same id more than once, the last row wins.
func Import(ctx context.Context, store SourceStore, st models.SourceType, rows []models.Source, mode ImportMode) (int, error) {
	if _, err := kindFor(st); err != nil {
		return 0, err
	}
	for i, src := range rows {
		if src.SourceType() != st {
			return 0, fmt.Errorf("importing %s: row %d is a %s", st, i+1, src.SourceType())
		}
		if src.SourceKey() == "" {
			return 0, fmt.Errorf("importing %s: row %d has no id", st, i+1)
		}
	}
	rows = mergeByKey(nil, rows)

	if mode == ImportReplace {
		if err := store.Save(ctx, st, rows); err != nil {
			return 0, fmt.Errorf("importing %s: %w", st, err)
		}
		return len(rows), nil
	}

	if u, ok := store.(upserter); ok {
		for _, src := range rows {
			if err := u.Upsert(ctx, src); err != nil {
				return 0, fmt.Errorf("importing %s: %w", st, err)
			}
		}
		return len(rows), nil
	}

	existing, err := store.Load(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", st, err)
	}
	if err := store.Save(ctx, st, mergeByKey(existing, rows)); err != nil {
		return 0, fmt.Errorf("importing %s: %w", st, err)
	}
	return len(rows), nil
}

// mergeByKey overlays incoming on existing by source id. Replaced rows keep
// their position and new ids are appended in input order.
func mergeByKey(existing, incoming []models.Source) []models.Source {
	out := make([]models.Source, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, src := range append(existing[:len(existing):len(existing)], incoming...) {
		if i, ok := pos[src.SourceKey()]; ok {
			out[i] = src
			continue
		}
		pos[src.SourceKey()] = len(out)
		out = append(out, src)
	}
	return out
}
