package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the checkpoint of the current run and the size of its cache and output.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		database, state, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		checkpoint, err := state.LoadCheckpoint(ctx)
		if err != nil {
			return err
		}
		individuals, err := state.CountIndividuals(ctx)
		if err != nil {
			return err
		}
		records, err := openSink(false).Count()
		if err != nil {
			return err
		}

		expected := "unknown"
		if checkpoint.CheckCount > 0 {
			expected = fmt.Sprint(checkpoint.CheckCount)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"Resuming", checkpoint.Resuming()},
			{"Next page", checkpoint.Page},
			{"Expected firms", expected},
			{"Cached individuals", individuals},
			{"Output records", records},
			{"Output file", cfg.Output.File},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
