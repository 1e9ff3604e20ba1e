package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"datachat/storage"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ls"},
	Short:   "List imported datasets",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		defer env.Close()

		infos, err := env.datasets.List(cmd.Context())
		if err != nil {
			return err
		}
		printDatasets(cmd.OutOrStdout(), infos)
		return nil
	},
}

func printDatasets(out io.Writer, infos []storage.DatasetInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No datasets yet. Run `datachat import <file.csv>`."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("NAME", "ROWS", "COLUMNS", "SOURCE", "IMPORTED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, info := range infos {
		cols := make([]string, len(info.Columns))
		for i, c := range info.Columns {
			cols[i] = c.Name
		}
		t.Row(info.Name, strconv.Itoa(info.Rows), strings.Join(cols, ", "), info.Source, formatAge(info.ImportedAt))
	}
	fmt.Fprintln(out, t.Render())
}
