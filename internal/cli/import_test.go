package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/attention/internal/storage"
	"github.com/valter-silva-au/attention/pkg/models"
)

func swapStore(t *testing.T) storage.SourceStore {
	t.Helper()
	orig := Store
	store := storage.NewFileSourceStore(filepath.Join(t.TempDir(), "sources"), nil)
	Store = store
	t.Cleanup(func() {
		Store = orig
		importReplace = false
		importCmd.SetOut(nil)
		importCmd.SetIn(nil)
	})
	return store
}

const taskSnapshot = `version: "1.0"
items:
  - id: t1
    title: Send board deck
    priority: high
  - id: t2
    title: Expense report
`

func TestImportCmd_MergesFile(t *testing.T) {
	store := swapStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, models.SourceTask, []models.Source{
		models.TaskRow{ID: "t0", Title: "Already there"},
		models.TaskRow{ID: "t2", Title: "Stale title"},
	}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(taskSnapshot), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	importCmd.SetOut(&out)
	if err := importCmd.RunE(importCmd, []string{"task", path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Merged 2 task row(s)") {
		t.Errorf("output = %q", out.String())
	}

	rows, err := store.Load(ctx, models.SourceTask)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if got := rows[1].(models.TaskRow).Title; got != "Expense report" {
		t.Errorf("t2 title = %q, want the imported title", got)
	}
}

func TestImportCmd_ReplaceFromStdin(t *testing.T) {
	store := swapStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, models.SourceTask, []models.Source{models.TaskRow{ID: "old", Title: "Gone"}}); err != nil {
		t.Fatal(err)
	}

	importReplace = true
	importCmd.SetIn(strings.NewReader(taskSnapshot))
	var out bytes.Buffer
	importCmd.SetOut(&out)
	if err := importCmd.RunE(importCmd, []string{"task", "-"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Replaced 2 task row(s)") {
		t.Errorf("output = %q", out.String())
	}

	rows, err := store.Load(ctx, models.SourceTask)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].SourceKey() != "t1" {
		t.Errorf("rows = %+v, want only the imported rows", rows)
	}
}

func TestImportCmd_Errors(t *testing.T) {
	swapStore(t)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("items: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown source type", []string{"newsletter", bad}, "unknown source type"},
		{"missing file", []string{"task", filepath.Join(t.TempDir(), "nope.yaml")}, "reading"},
		{"malformed yaml", []string{"task", bad}, "parsing task snapshot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := importCmd.RunE(importCmd, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestImportCmd_NilStore(t *testing.T) {
	swapStore(t)
	Store = nil

	err := importCmd.RunE(importCmd, []string{"task", "-"})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("err = %v, want not initialized", err)
	}
}
