package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"datachat/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage datachat configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration files if they are missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load creates both files from their templates when missing.
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir := configDir
		if dir == "" {
			dir = config.GetConfigDir()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render("✓ Configuration ready"))
		fmt.Fprintf(out, "  settings: %s\n", config.GetSettingsFilePath(dir))
		fmt.Fprintf(out, "  data:     %s\n", cfg.DataDir())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := cfg.Encode()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
