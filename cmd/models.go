package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"datachat/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the configured provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		p := env.agent.Config().Model
		models, err := provider.AvailableModels(ctx, p)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		current := env.cfg.Provider.Model
		for _, m := range models {
			marker := "  "
			if m.Name == current || m.InternalName == current {
				marker = successStyle.Render("* ")
			}
			line := marker + m.Name
			if m.Size > 0 {
				line += " " + dimStyle.Render(humanize.Bytes(uint64(m.Size)))
			}
			fmt.Fprintln(out, line)
		}
		if len(models) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No models found."))
		}
		return nil
	},
}
