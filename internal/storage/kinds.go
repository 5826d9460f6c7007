package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an action targets an entity the store does not hold.
var ErrNotFound = errors.New("source entity not found")

// ErrNotSnoozable is returned when snoozing a source type that has no snooze
// state, such as calendar events.
var ErrNotSnoozable = errors.New("source type cannot be snoozed")

// snapshotVersion is written at the top of every snapshot file.
const snapshotVersion = "1.0"

// kind bundles the typed codecs for one source type so stores can stay
// agnostic of the concrete row structs.
type kind struct {
	decodeList func(data []byte) ([]models.Source, error)
	encodeList func(items []models.Source) ([]byte, error)
	decodeJSON func(data []byte) (models.Source, error)
}

// snapshotFile is the on-disk YAML layout for one source type.
type snapshotFile[T models.Source] struct {
	Version string `yaml:"version"`
	Items   []T    `yaml:"items"`
}

func kindOf[T models.Source]() kind {
	return kind{
		decodeList: func(data []byte) ([]models.Source, error) {
			var f snapshotFile[T]
			if err := yaml.Unmarshal(data, &f); err != nil {
				return nil, err
			}
			out := make([]models.Source, 0, len(f.Items))
			for _, item := range f.Items {
				out = append(out, item)
			}
			return out, nil
		},
		encodeList: func(items []models.Source) ([]byte, error) {
			f := snapshotFile[T]{Version: snapshotVersion, Items: make([]T, 0, len(items))}
			for _, src := range items {
				typed, ok := src.(T)
				if !ok {
					return nil, fmt.Errorf("encoding %T as %s", src, src.SourceType())
				}
				f.Items = append(f.Items, typed)
			}
			return yaml.Marshal(&f)
		},
		decodeJSON: func(data []byte) (models.Source, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var kinds = map[models.SourceType]kind{
	models.SourceTask:                kindOf[models.TaskRow](),
	models.SourceInbox:               kindOf[models.InboxMessage](),
	models.SourceCalendarEvent:       kindOf[models.CalendarEvent](),
	models.SourcePortfolioCompany:    kindOf[models.PortfolioCompany](),
	models.SourcePipelineCompany:     kindOf[models.PipelineCompany](),
	models.SourceReadingItem:         kindOf[models.ReadingItem](),
	models.SourceRecurringCommitment: kindOf[models.RecurringCommitment](),
}

func kindFor(st models.SourceType) (kind, error) {
	k, ok := kinds[st]
	if !ok {
		return kind{}, fmt.Errorf("unknown source type %q", st)
	}
	return k, nil
}

// action transforms one stored entity in place.
type action func(src models.Source) (models.Source, error)

func resolveAction(at time.Time) action {
	return func(src models.Source) (models.Source, error) {
		return models.WithResolved(src, at), nil
	}
}

func snoozeAction(until time.Time) action {
	return func(src models.Source) (models.Source, error) {
		if src.SourceType() == models.SourceCalendarEvent {
			return nil, fmt.Errorf("snoozing %s: %w", src.SourceType(), ErrNotSnoozable)
		}
		return models.WithSnooze(src, until), nil
	}
}
