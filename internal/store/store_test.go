package store

import (
	"context"
	"nrscrawler/internal/components/db"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	sqlite, err := db.Open(context.Background(), db.Options{File: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return NewStore(sqlite)
}

func TestCheckpoint(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	checkpoint, err := store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, Checkpoint{Page: 1}, checkpoint)
	require.False(t, checkpoint.Resuming())

	err = store.SaveCheckpoint(ctx, Checkpoint{Page: 5, CheckCount: 500})
	require.NoError(t, err)

	checkpoint, err = store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, Checkpoint{Page: 5, CheckCount: 500}, checkpoint)
	require.True(t, checkpoint.Resuming())

	err = store.SaveCheckpoint(ctx, Checkpoint{Page: 1})
	require.NoError(t, err)
	checkpoint, err = store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, Checkpoint{Page: 1}, checkpoint)

	require.NoError(t, store.SaveCheckpoint(ctx, Checkpoint{Page: 3, CheckCount: 250}))
	require.NoError(t, store.ClearCheckpoint(ctx))
	checkpoint, err = store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, Checkpoint{Page: 1}, checkpoint)
}

func TestIndividualCache(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	key := IndividualKey{Jurisdiction: "Ontario", Name: "Jane Doe", Firm: "Acme Capital"}

	_, ok, err := store.GetIndividual(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	jane := Individual{
		Jurisdiction: "Ontario",
		Name:         "Jane Doe",
		Firm:         "Acme Capital",
		Terms:        "None",
		Contact:      "1 King St W Toronto",
		Categories: []Category{
			{Category: "Dealing Representative", From: "Jan 1, 2010", Status: "Active"},
		},
	}
	require.Equal(t, key, jane.Key())
	require.NoError(t, store.PutIndividual(ctx, jane))

	cached, ok, err := store.GetIndividual(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, jane, cached)

	// the same person under another firm is a separate entry
	_, ok, err = store.GetIndividual(ctx, IndividualKey{Jurisdiction: "Ontario", Name: "Jane Doe", Firm: "Other"})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.PutIndividual(ctx, Individual{
		Jurisdiction: "Quebec",
		Name:         "John Roe",
		Firm:         "Acme Capital",
	}))
	john, ok, err := store.GetIndividual(ctx, IndividualKey{Jurisdiction: "Quebec", Name: "John Roe", Firm: "Acme Capital"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []Category{}, john.Categories)

	count, err := store.CountIndividuals(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, store.SaveCheckpoint(ctx, Checkpoint{Page: 2, CheckCount: 120}))
	require.NoError(t, store.Reset(ctx))

	count, err = store.CountIndividuals(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
	checkpoint, err := store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, checkpoint.Page)
}

func TestIndividualFirstResolutionWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	current := Individual{
		Jurisdiction: "Ontario",
		Name:         "John Roe",
		Firm:         "Acme Capital",
		Categories:   []Category{{Category: "Dealing Representative", Status: "Active"}},
	}
	historical := current
	historical.Categories = []Category{{Category: "Dealing Representative", To: "Mar 1, 2015"}}

	require.NoError(t, store.PutIndividual(ctx, current))
	require.NoError(t, store.PutIndividual(ctx, historical))

	cached, ok, err := store.GetIndividual(ctx, current.Key())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, current, cached)
}
