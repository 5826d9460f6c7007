package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the attn configuration",
	Long: `Inspect the effective configuration loaded from .attnconfig.yaml, an
optional .env file, and ATTN_* environment variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if GlobalCfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		data, err := yaml.Marshal(GlobalCfg)
		if err != nil {
			return fmt.Errorf("formatting configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil || GlobalCfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		if err := ConfigMgr.ValidateConfig(GlobalCfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
