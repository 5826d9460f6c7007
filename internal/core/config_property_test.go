package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

// Property: every value written to .attnconfig.yaml is read back unchanged.
func TestProperty_ConfigRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxItems := rapid.IntRange(1, 50).Draw(rt, "maxItems")
		perSource := rapid.IntRange(0, 10).Draw(rt, "perSource")
		stale := rapid.IntRange(1, 90).Draw(rt, "stale")
		minScore := float64(rapid.IntRange(0, 100).Draw(rt, "minScore")) / 100
		strict := rapid.Bool().Draw(rt, "strict")

		dir, err := os.MkdirTemp("", "attn-config-*")
		if err != nil {
			rt.Fatalf("temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		content := fmt.Sprintf(`priority:
  min_score: %v
  max_items: %d
  max_items_per_source: %d
  company_stale_threshold_days: %d
  strict_max_items: %v
`, minScore, maxItems, perSource, stale, strict)
		if err := os.WriteFile(filepath.Join(dir, ".attnconfig.yaml"), []byte(content), 0o644); err != nil {
			rt.Fatalf("write: %v", err)
		}

		cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
		if err != nil {
			rt.Fatalf("load: %v", err)
		}
		p := cfg.Priority
		if p.MaxItems != maxItems {
			rt.Errorf("MaxItems = %d, want %d", p.MaxItems, maxItems)
		}
		if p.MaxItemsPerSource != perSource {
			rt.Errorf("MaxItemsPerSource = %d, want %d", p.MaxItemsPerSource, perSource)
		}
		if p.CompanyStaleThreshold != stale {
			rt.Errorf("CompanyStaleThreshold = %d, want %d", p.CompanyStaleThreshold, stale)
		}
		if p.MinScore != minScore {
			rt.Errorf("MinScore = %v, want %v", p.MinScore, minScore)
		}
		if p.StrictMaxItems != strict {
			rt.Errorf("StrictMaxItems = %v, want %v", p.StrictMaxItems, strict)
		}
		if err := ValidatePriorityConfig(p); err != nil {
			rt.Errorf("valid generated config rejected: %v", err)
		}
	})
}
