package db

import (
	"context"
)

const getIndividual = `-- name: GetIndividual :one
select jurisdiction, name, firm, terms, contact, categories from individuals
where jurisdiction = ?1 and name = ?2 and firm = ?3
`

type GetIndividualParams struct {
	Jurisdiction string
	Name         string
	Firm         string
}

func (q *Queries) GetIndividual(ctx context.Context, arg GetIndividualParams) (Individual, error) {
	row := q.db.QueryRowContext(ctx, getIndividual, arg.Jurisdiction, arg.Name, arg.Firm)
	var i Individual
	err := row.Scan(
		&i.Jurisdiction,
		&i.Name,
		&i.Firm,
		&i.Terms,
		&i.Contact,
		&i.Categories,
	)
	return i, err
}

const putIndividual = `-- name: PutIndividual :exec
insert into individuals (jurisdiction, name, firm, terms, contact, categories)
values (?1, ?2, ?3, ?4, ?5, ?6)
on conflict (jurisdiction, name, firm) do nothing
`

type PutIndividualParams struct {
	Jurisdiction string
	Name         string
	Firm         string
	Terms        string
	Contact      string
	Categories   string
}

func (q *Queries) PutIndividual(ctx context.Context, arg PutIndividualParams) error {
	_, err := q.db.ExecContext(ctx, putIndividual,
		arg.Jurisdiction,
		arg.Name,
		arg.Firm,
		arg.Terms,
		arg.Contact,
		arg.Categories,
	)
	return err
}

const countIndividuals = `-- name: CountIndividuals :one
select count(*) from individuals
`

func (q *Queries) CountIndividuals(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countIndividuals)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteIndividuals = `-- name: DeleteIndividuals :exec
delete from individuals
`

func (q *Queries) DeleteIndividuals(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteIndividuals)
	return err
}

const getVar = `-- name: GetVar :one
select value from vars where name = ?1
`

func (q *Queries) GetVar(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getVar, name)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setVar = `-- name: SetVar :exec
insert into vars (name, value) values (?1, ?2)
on conflict (name) do update set value = excluded.value
`

type SetVarParams struct {
	Name  string
	Value string
}

func (q *Queries) SetVar(ctx context.Context, arg SetVarParams) error {
	_, err := q.db.ExecContext(ctx, setVar, arg.Name, arg.Value)
	return err
}

const deleteVar = `-- name: DeleteVar :exec
delete from vars where name = ?1
`

func (q *Queries) DeleteVar(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, deleteVar, name)
	return err
}
