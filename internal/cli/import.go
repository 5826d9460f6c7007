package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/storage"
	"github.com/valter-silva-au/attention/pkg/models"
)

var importReplace bool

var importCmd = &cobra.Command{
	Use:   "import <source-type> <file|->",
	Short: "Load source rows from a YAML snapshot into the source store",
	Long: `Read a YAML snapshot of one source type and write its rows into the
configured source store (the snapshot directory or the SQLite database).

The file uses the same layout as the snapshot store:

  version: "1.0"
  items:
    - id: t1
      title: Send board deck
      priority: high

Rows are merged by id by default. With --replace, every existing row of the
source type is discarded first. Use - to read from stdin.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveDefault
		}
		types := make([]string, 0, len(models.AllSourceTypes))
		for _, st := range models.AllSourceTypes {
			types = append(types, string(st))
		}
		return types, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("source store not initialized")
		}
		st, err := models.ParseSourceType(args[0])
		if err != nil {
			return err
		}

		data, err := readImportFile(cmd, args[1])
		if err != nil {
			return err
		}
		rows, err := storage.DecodeSnapshot(st, data)
		if err != nil {
			return err
		}

		mode := storage.ImportMerge
		if importReplace {
			mode = storage.ImportReplace
		}
		n, err := storage.Import(commandContext(cmd), Store, st, rows, mode)
		if err != nil {
			return err
		}

		verb := "Merged"
		if importReplace {
			verb = "Replaced"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s row(s)\n", verb, n, st)
		return nil
	},
}

func readImportFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Discard existing rows of the source type before importing")
	rootCmd.AddCommand(importCmd)
}
