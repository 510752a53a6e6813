package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Options struct {
	// File is a local sqlite path, ":memory:" is allowed.
	File string
	// URL selects a remote libsql database instead of File when set.
	URL       string
	AuthToken string
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// Open opens the database described by opts and applies Schema.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	if opts.URL != "" {
		db, err = openRemote(opts.URL, opts.AuthToken)
	} else {
		db, err = openLocal(opts.File)
	}
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

func openLocal(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func openRemote(rawUrl, authToken string) (*sql.DB, error) {
	if authToken != "" {
		u, err := url.Parse(rawUrl)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		rawUrl = u.String()
	}
	return sql.Open("libsql", rawUrl)
}
