package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discards the checkpoint, the individual cache and the output so the next crawl starts over.",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, state, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		err = state.Reset(cmd.Context())
		if err != nil {
			return err
		}
		err = openSink(false).Remove()
		if err != nil {
			return err
		}
		slog.Info("reset crawl state", "store", cfg.Store.File, "output", cfg.Output.File)
		return nil
	},
}
