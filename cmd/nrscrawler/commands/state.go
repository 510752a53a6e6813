package commands

import (
	"context"
	"database/sql"
	"io"
	"nrscrawler/internal/components/db"
	"nrscrawler/internal/sink"
	"nrscrawler/internal/store"
	"os"
)

func openStore(ctx context.Context) (*sql.DB, store.Store, error) {
	database, err := db.Open(ctx, cfg.DBOptions())
	if err != nil {
		return nil, store.Store{}, err
	}
	return database, store.NewStore(database), nil
}

func openSink(echo bool) sink.FileSink {
	var w io.Writer
	if echo {
		w = os.Stdout
	}
	return sink.NewFileSink(cfg.Output.File, w)
}
