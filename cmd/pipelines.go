package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"datachat/pipeline"
	"datachat/pipelines"
	"datachat/prompt"
)

var showPrompt bool

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List the pipelines the model can call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		descs := make([]pipeline.Descriptor, 0)
		for _, p := range pipelines.Builtin(nil, nil) {
			descs = append(descs, p.Descriptor())
		}

		if showPrompt {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, prompt.Assemble(prompt.Input{
				SystemPrompt: cfg.SystemPrompt,
				Tools:        prompt.BuildCatalog(descs),
			}))
			return nil
		}

		for _, d := range descs {
			fmt.Fprintln(out, headerStyle.Render(string(d.Name)))
			fmt.Fprintf(out, "  %s\n", d.Description)
			for _, in := range d.Inputs {
				req := ""
				if in.Required {
					req = " (required)"
				}
				fmt.Fprintf(out, "  %s %s%s\n", in.Name, dimStyle.Render(in.Type+req), dimStyle.Render("  "+in.Description))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	pipelinesCmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the system prompt sent to the model instead")
}
