package commands

import (
	"context"
	"fmt"
	"log/slog"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/config"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool

	cfg config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "The configuration file to read, when omitted it is searched for in the working directory and its parents.")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging.")
}

var rootCmd = &cobra.Command{
	Use:           "nrscrawler",
	Short:         "nrscrawler crawls the national registration search and writes every registration as a JSON line.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(debug)

		path := configPath
		var err error
		if cmd.Flags().Changed("config") {
			cfg, err = config.Load(configPath)
		} else {
			cfg, path, err = config.LoadNearest(configPath)
		}
		if err != nil {
			return err
		}
		slog.Debug("loaded config", "path", path, "store", cfg.Store.File, "output", cfg.Output.File)
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
