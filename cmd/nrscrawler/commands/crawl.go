package commands

import (
	"context"
	"log/slog"
	"nrscrawler/internal/components/chrono"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/scrapers/nrs"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(crawlCmd)
}

// setupTelemetry returns the reporting API for the crawl and a function that
// flushes exporters, OTLP export is only set up when it is configured.
func setupTelemetry(ctx context.Context) (telemetry.API, func(), error) {
	var tel telemetry.API = telemetry.SlogAPI{}
	if !cfg.Telemetry.Enabled() {
		return tel, func() {}, nil
	}

	providers, err := telemetry.Setup(ctx, "nrscrawler", cfg.Telemetry)
	if err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		err := providers.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}

	metered, err := telemetry.NewMeteredAPI(tel)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	telemetry.InstrumentPerfStats(ctx)
	return metered, shutdown, nil
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawls the listing, resuming the interrupted run if there is one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tel, shutdown, err := setupTelemetry(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		templates, err := cfg.LoadTemplates()
		if err != nil {
			return err
		}
		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			return err
		}

		httpOpts := cfg.HttpOptions()
		if cfg.Debug.HttpDumpDir != "" {
			output, err := telemetry.NewFilesystemOutput(cfg.Debug.HttpDumpDir)
			if err != nil {
				return err
			}
			httpOpts.DumpOutput = output
		}
		transport, err := nrs.NewHttpTransport(httpOpts, telemetry.NewScopedAPI("http", tel))
		if err != nil {
			return err
		}
		retrier := nrs.NewRetrier(transport, clock, telemetry.NewScopedAPI("nrs", tel), cfg.RetryOptions())

		database, state, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		echo := *cfg.Output.EchoStdout
		opts := cfg.WalkerOptions(templates)
		if echo {
			opts.Replay = os.Stdout
		}
		walker, err := nrs.NewWalker(
			opts,
			retrier,
			state,
			openSink(echo),
			clock,
			telemetry.NewScopedAPI("nrs", tel),
		)
		if err != nil {
			return err
		}

		start := time.Now()
		err = walker.Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("crawl finished", "output", cfg.Output.File, "seconds", time.Since(start).Seconds())
		return nil
	},
}
