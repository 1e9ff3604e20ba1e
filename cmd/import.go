package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datachat/storage"
)

var importName string

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a CSV file as a dataset",
	Long: `Import a CSV file into the dataset database.

The first row holds the column names. Column types are inferred from the
data. The dataset is named after the file unless --name is given; importing
under an existing name replaces that dataset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()

		path := args[0]
		name := importName
		if name == "" {
			name = storage.TableName(path)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		info, err := env.datasets.ImportCSV(cmd.Context(), name, f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Imported %s: %d rows, %d columns", info.Name, info.Rows, len(info.Columns))))
		for _, c := range info.Columns {
			fmt.Fprintf(out, "  %s %s\n", c.Name, dimStyle.Render(c.Type))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "dataset name (default: derived from the file name)")
}
