package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/valter-silva-au/attention/pkg/models"
)

// defaultFetchTimeout bounds a single source fetch when the config leaves
// FetchTimeout unset.
const defaultFetchTimeout = 5 * time.Second

// SourceFetcher loads the current snapshot of one backing store.
type SourceFetcher interface {
	SourceType() models.SourceType
	Fetch(ctx context.Context) ([]models.Source, error)
}

// ActionApplier routes user actions back to the store that owns an item.
// The engine never calls it; callers use the SourceType and SourceID carried
// on each WorkItem.
type ActionApplier interface {
	Resolve(ctx context.Context, sourceType models.SourceType, sourceID string) error
	Snooze(ctx context.Context, sourceType models.SourceType, sourceID string, until time.Time) error
}

// RankStats summarises a ranked list for observability surfaces.
type RankStats struct {
	Total          int                       `json:"total"`
	Distribution   map[models.SourceType]int `json:"distribution"`
	AvgScore       float64                   `json:"avg_score"`
	MinScore       float64                   `json:"min_score"`
	MaxScore       float64                   `json:"max_score"`
	AlwaysIncluded int                       `json:"always_included"`
}

// DroppedItem records an item removed by validation.
type DroppedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// RankResult is the output of one ranking pass.
type RankResult struct {
	RunID        string                       `json:"run_id"`
	GeneratedAt  time.Time                    `json:"generated_at"`
	Items        []models.WorkItem            `json:"items"`
	Stats        RankStats                    `json:"stats"`
	Considered   int                          `json:"considered"`
	Excluded     int                          `json:"excluded"`
	Dropped      []DroppedItem                `json:"dropped,omitempty"`
	SourceErrors map[models.SourceType]string `json:"source_errors,omitempty"`
}

// Find returns the ranked item with the given id.
func (r *RankResult) Find(id string) (models.WorkItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return models.WorkItem{}, false
}

// ErrItemNotRanked is returned by Explain when an id is not in the ranked list.
var ErrItemNotRanked = errors.New("item not in ranked list")

// Explain looks up one ranked item so its reasoning and signals can be shown.
func Explain(result *RankResult, id string) (models.WorkItem, error) {
	if result == nil {
		return models.WorkItem{}, fmt.Errorf("explaining %s: %w", id, ErrItemNotRanked)
	}
	item, ok := result.Find(id)
	if !ok {
		return models.WorkItem{}, fmt.Errorf("explaining %s: %w", id, ErrItemNotRanked)
	}
	return item, nil
}

// RankSnapshot runs the pure pipeline over an in-memory snapshot:
// exclude, adapt and score, validate, threshold, select, summarise.
func RankSnapshot(sources []models.Source, cfg models.PriorityConfig, now time.Time) RankResult {
	result := RankResult{GeneratedAt: now}

	items := make([]models.WorkItem, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if excluded, _ := ShouldExcludeFromPriority(src, now); excluded {
			result.Excluded++
			continue
		}
		item, err := MapSource(src, cfg, now)
		if err != nil {
			result.Dropped = append(result.Dropped, DroppedItem{
				ID:     models.WorkItemID(src.SourceType(), src.SourceKey()),
				Reason: err.Error(),
			})
			continue
		}
		if err := ValidatePriorityItem(item); err != nil {
			result.Dropped = append(result.Dropped, DroppedItem{ID: item.ID, Reason: err.Error()})
			continue
		}
		// The first row for an id wins; later copies are dropped.
		if seen[item.ID] {
			result.Dropped = append(result.Dropped, DroppedItem{ID: item.ID, Reason: "duplicate id"})
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	result.Considered = len(items)

	result.Items = ApplyAllRules(items, cfg, now)
	result.Stats = ComputeStats(result.Items, now)
	return result
}

// ComputeStats aggregates the distribution and score range of a ranked list.
// Every known source type appears in the distribution, with 0 when absent.
func ComputeStats(items []models.WorkItem, now time.Time) RankStats {
	stats := RankStats{
		Total:        len(items),
		Distribution: make(map[models.SourceType]int, len(models.AllSourceTypes)),
	}
	for _, st := range models.AllSourceTypes {
		stats.Distribution[st] = 0
	}
	if len(items) == 0 {
		return stats
	}

	stats.MinScore = items[0].PriorityScore
	stats.MaxScore = items[0].PriorityScore
	var sum float64
	for _, item := range items {
		stats.Distribution[item.SourceType]++
		sum += item.PriorityScore
		if item.PriorityScore < stats.MinScore {
			stats.MinScore = item.PriorityScore
		}
		if item.PriorityScore > stats.MaxScore {
			stats.MaxScore = item.PriorityScore
		}
		if IsAlwaysInclude(item, now) {
			stats.AlwaysIncluded++
		}
	}
	stats.AvgScore = sum / float64(len(items))
	return stats
}

// PriorityEngine fetches every source and ranks the combined snapshot.
type PriorityEngine interface {
	Rank(ctx context.Context, cfg models.PriorityConfig) (*RankResult, error)
}

type priorityEngine struct {
	fetchers []SourceFetcher
	logger   EventLogger
	clock    func() time.Time
}

// NewPriorityEngine creates a PriorityEngine over the given fetchers.
// logger may be nil. clock defaults to time.Now.
func NewPriorityEngine(fetchers []SourceFetcher, logger EventLogger, clock func() time.Time) PriorityEngine {
	if clock == nil {
		clock = time.Now
	}
	return &priorityEngine{fetchers: fetchers, logger: logger, clock: clock}
}

type fetchResult struct {
	sourceType models.SourceType
	sources    []models.Source
	err        error
}

// Rank fetches all sources concurrently, then ranks whatever succeeded. A
// failed or slow source contributes no items and is reported in
// SourceErrors. Rank only fails when ctx is already done.
func (e *priorityEngine) Rank(ctx context.Context, cfg models.PriorityConfig) (*RankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	cfg = cfg.Clone()
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	results := make([]fetchResult, len(e.fetchers))
	var wg conc.WaitGroup
	for i, f := range e.fetchers {
		wg.Go(func() {
			results[i] = fetchWithTimeout(ctx, f, timeout)
		})
	}
	wg.Wait()

	runID := uuid.NewString()
	var sources []models.Source
	sourceErrors := make(map[models.SourceType]string)
	for _, r := range results {
		if r.err != nil {
			if prev, ok := sourceErrors[r.sourceType]; ok {
				sourceErrors[r.sourceType] = prev + "; " + r.err.Error()
			} else {
				sourceErrors[r.sourceType] = r.err.Error()
			}
			e.logEvent("ranking.source_failed", map[string]any{
				"run_id":      runID,
				"source_type": string(r.sourceType),
				"error":       r.err.Error(),
			})
			continue
		}
		sources = append(sources, r.sources...)
	}

	result := RankSnapshot(sources, cfg, e.clock())
	result.RunID = runID
	if len(sourceErrors) > 0 {
		result.SourceErrors = sourceErrors
	}

	for _, d := range result.Dropped {
		e.logEvent("priority.item_dropped", map[string]any{
			"run_id":  runID,
			"item_id": d.ID,
			"reason":  d.Reason,
		})
	}
	e.logEvent("ranking.completed", completedEventData(&result, cfg))

	return &result, nil
}

func fetchWithTimeout(ctx context.Context, f SourceFetcher, timeout time.Duration) fetchResult {
	st := f.SourceType()
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		var r fetchResult
		var pc panics.Catcher
		pc.Try(func() {
			r.sources, r.err = f.Fetch(fctx)
		})
		if rec := pc.Recovered(); rec != nil {
			r = fetchResult{err: fmt.Errorf("fetcher panicked: %v", rec.Value)}
		}
		done <- r
	}()

	select {
	case r := <-done:
		r.sourceType = st
		if r.err != nil {
			r.sources = nil
			r.err = fmt.Errorf("fetching %s: %w", st, r.err)
		}
		return r
	case <-fctx.Done():
		return fetchResult{sourceType: st, err: fmt.Errorf("fetching %s: %w", st, fctx.Err())}
	}
}

func completedEventData(r *RankResult, cfg models.PriorityConfig) map[string]any {
	dist := make(map[string]any, len(r.Stats.Distribution))
	for st, n := range r.Stats.Distribution {
		dist[string(st)] = n
	}
	failed := make([]string, 0, len(r.SourceErrors))
	for st := range r.SourceErrors {
		failed = append(failed, string(st))
	}
	sort.Strings(failed)
	return map[string]any{
		"run_id":          r.RunID,
		"selected":        r.Stats.Total,
		"considered":      r.Considered,
		"excluded":        r.Excluded,
		"dropped":         len(r.Dropped),
		"always_included": r.Stats.AlwaysIncluded,
		"max_items":       cfg.MaxItems,
		"avg_score":       r.Stats.AvgScore,
		"min_score":       r.Stats.MinScore,
		"max_score":       r.Stats.MaxScore,
		"distribution":    dist,
		"failed_sources":  strings.Join(failed, ","),
	}
}

func (e *priorityEngine) logEvent(eventType string, data map[string]any) {
	if e.logger == nil {
		return
	}
	_ = e.logger.LogEvent(eventType, data) // Non-fatal: ranking never fails on logging.
}
