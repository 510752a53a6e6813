package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenLocal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	sqlite, err := Open(ctx, Options{File: path})
	require.NoError(t, err)
	defer sqlite.Close()

	qry := New(sqlite)
	err = qry.SetVar(ctx, SetVarParams{Name: "page", Value: "3"})
	require.NoError(t, err)
	err = qry.SetVar(ctx, SetVarParams{Name: "page", Value: "4"})
	require.NoError(t, err)

	value, err := qry.GetVar(ctx, "page")
	require.NoError(t, err)
	require.Equal(t, "4", value)

	require.NoError(t, qry.DeleteVar(ctx, "page"))
	_, err = qry.GetVar(ctx, "page")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)
}

func TestMakeTx(t *testing.T) {
	ctx := context.Background()
	sqlite, err := Open(ctx, Options{File: ":memory:"})
	require.NoError(t, err)
	defer sqlite.Close()

	makeTx := NewMakeTx(sqlite)

	{
		tx, discard, _, err := makeTx(ctx)
		require.NoError(t, err)
		err = tx.PutIndividual(ctx, PutIndividualParams{
			Jurisdiction: "Ontario",
			Name:         "Jane Doe",
			Firm:         "Acme Capital",
			Categories:   "[]",
		})
		require.NoError(t, err)
		require.NoError(t, discard())
	}

	count, err := New(sqlite).CountIndividuals(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	{
		tx, discard, commit, err := makeTx(ctx)
		require.NoError(t, err)
		defer discard()
		err = tx.PutIndividual(ctx, PutIndividualParams{
			Jurisdiction: "Ontario",
			Name:         "Jane Doe",
			Firm:         "Acme Capital",
			Terms:        "none",
			Categories:   "[]",
		})
		require.NoError(t, err)
		require.NoError(t, commit())
	}

	individual, err := New(sqlite).GetIndividual(ctx, GetIndividualParams{
		Jurisdiction: "Ontario",
		Name:         "Jane Doe",
		Firm:         "Acme Capital",
	})
	require.NoError(t, err)
	require.Equal(t, "none", individual.Terms)
}
