package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

// SelectTopPriorityItems produces a bounded, source-diverse ranking.
//
// Always-include items are admitted first and count against their source's
// cap. The remaining items are walked in descending score order and admitted
// while their source is under its cap and the list is under cfg.MaxItems.
// The result is re-sorted by score, so mandatory items are not pinned.
//
// Equal scores keep their input order (stable sort); callers should not rely
// on that as a contract.
//
// A source whose cap is zero or negative is excluded entirely, mandatory
// items included. Unless cfg.StrictMaxItems is set, mandatory items are never
// truncated by cfg.MaxItems.
func SelectTopPriorityItems(items []models.WorkItem, cfg models.PriorityConfig, now time.Time) []models.WorkItem {
	var always, remaining []models.WorkItem
	for _, item := range items {
		if cfg.CapFor(item.SourceType) <= 0 {
			continue
		}
		if IsAlwaysInclude(item, now) {
			always = append(always, item)
		} else {
			remaining = append(remaining, item)
		}
	}

	sortByScore(remaining)

	counts := make(map[models.SourceType]int)
	for _, item := range always {
		counts[item.SourceType]++
	}

	selected := make([]models.WorkItem, 0, len(always)+len(remaining))
	selected = append(selected, always...)
	for _, item := range remaining {
		if len(selected) >= cfg.MaxItems {
			break
		}
		if counts[item.SourceType] >= cfg.CapFor(item.SourceType) {
			continue
		}
		counts[item.SourceType]++
		selected = append(selected, item)
	}

	sortByScore(selected)

	if cfg.StrictMaxItems && len(selected) > cfg.MaxItems {
		limit := cfg.MaxItems
		if limit < 0 {
			limit = 0
		}
		selected = selected[:limit]
	}
	return selected
}

// ApplyAllRules runs the threshold filter followed by selection.
func ApplyAllRules(items []models.WorkItem, cfg models.PriorityConfig, now time.Time) []models.WorkItem {
	return SelectTopPriorityItems(ApplyScoreThreshold(items, cfg, now), cfg, now)
}

func sortByScore(items []models.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PriorityScore > items[j].PriorityScore
	})
}
