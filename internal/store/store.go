package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"nrscrawler/internal/components/assert"
	"nrscrawler/internal/components/db"
	"strconv"
)

const (
	varPage       = "page"
	varCheckCount = "check_count"
)

// Store persists the crawl checkpoint and the per-run individual cache.
type Store struct {
	qry    *db.Queries
	makeTx db.MakeTx
}

func NewStore(database *sql.DB) Store {
	assert.NotNil(database)
	return Store{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
	}
}

// Checkpoint is the resumable position of a crawl.
type Checkpoint struct {
	// Page is the next page to request, starting at 1.
	Page int
	// CheckCount is the record count declared by the first page of the run,
	// 0 means it has not been observed yet.
	CheckCount int
}

func (c Checkpoint) Resuming() bool {
	return c.Page > 1
}

func (s Store) getIntVar(ctx context.Context, name string) (int, bool, error) {
	value, err := s.qry.GetVar(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("var %s: %w", name, err)
	}
	return n, true, nil
}

// LoadCheckpoint returns the persisted checkpoint or {Page: 1} when none exists.
func (s Store) LoadCheckpoint(ctx context.Context) (Checkpoint, error) {
	page, ok, err := s.getIntVar(ctx, varPage)
	if err != nil {
		return Checkpoint{}, err
	}
	if !ok || page < 1 {
		page = 1
	}
	count, _, err := s.getIntVar(ctx, varCheckCount)
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{Page: page, CheckCount: count}, nil
}

func (s Store) SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = tx.SetVar(ctx, db.SetVarParams{
		Name:  varPage,
		Value: strconv.Itoa(checkpoint.Page),
	})
	if err != nil {
		return err
	}
	if checkpoint.CheckCount > 0 {
		err = tx.SetVar(ctx, db.SetVarParams{
			Name:  varCheckCount,
			Value: strconv.Itoa(checkpoint.CheckCount),
		})
	} else {
		err = tx.DeleteVar(ctx, varCheckCount)
	}
	if err != nil {
		return err
	}
	return commit()
}

func (s Store) ClearCheckpoint(ctx context.Context) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = tx.DeleteVar(ctx, varPage)
	if err != nil {
		return err
	}
	err = tx.DeleteVar(ctx, varCheckCount)
	if err != nil {
		return err
	}
	return commit()
}

type Category struct {
	Category string `json:"category"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Status   string `json:"status,omitempty"`
}

type IndividualKey struct {
	Jurisdiction string
	Name         string
	Firm         string
}

type Individual struct {
	Jurisdiction string     `json:"jurisdiction"`
	Name         string     `json:"name"`
	Firm         string     `json:"firm"`
	Terms        string     `json:"terms"`
	Contact      string     `json:"contact"`
	Categories   []Category `json:"categories"`
}

func (i Individual) Key() IndividualKey {
	return IndividualKey{
		Jurisdiction: i.Jurisdiction,
		Name:         i.Name,
		Firm:         i.Firm,
	}
}

// GetIndividual looks up a cached individual, the bool is false on a miss.
func (s Store) GetIndividual(ctx context.Context, key IndividualKey) (Individual, bool, error) {
	row, err := s.qry.GetIndividual(ctx, db.GetIndividualParams{
		Jurisdiction: key.Jurisdiction,
		Name:         key.Name,
		Firm:         key.Firm,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Individual{}, false, nil
	}
	if err != nil {
		return Individual{}, false, err
	}

	out := Individual{
		Jurisdiction: row.Jurisdiction,
		Name:         row.Name,
		Firm:         row.Firm,
		Terms:        row.Terms,
		Contact:      row.Contact,
	}
	err = json.Unmarshal([]byte(row.Categories), &out.Categories)
	if err != nil {
		return Individual{}, false, fmt.Errorf("decode categories of %s: %w", key.Name, err)
	}
	if out.Categories == nil {
		out.Categories = []Category{}
	}
	return out, true, nil
}

// PutIndividual stores an individual unless one is already stored under
// the same key, the first resolution of a key wins.
func (s Store) PutIndividual(ctx context.Context, individual Individual) error {
	categories := individual.Categories
	if categories == nil {
		categories = []Category{}
	}
	serialized, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	return s.qry.PutIndividual(ctx, db.PutIndividualParams{
		Jurisdiction: individual.Jurisdiction,
		Name:         individual.Name,
		Firm:         individual.Firm,
		Terms:        individual.Terms,
		Contact:      individual.Contact,
		Categories:   string(serialized),
	})
}

func (s Store) CountIndividuals(ctx context.Context) (int64, error) {
	return s.qry.CountIndividuals(ctx)
}

func (s Store) ClearIndividuals(ctx context.Context) error {
	return s.qry.DeleteIndividuals(ctx)
}

// Reset discards the checkpoint and the individual cache.
func (s Store) Reset(ctx context.Context) error {
	err := s.ClearCheckpoint(ctx)
	if err != nil {
		return err
	}
	return s.ClearIndividuals(ctx)
}
