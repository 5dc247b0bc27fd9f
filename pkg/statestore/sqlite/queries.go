package sqlite

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const getState = `select record from lighting_state where id = 1`

func (q *Queries) GetState(ctx context.Context) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getState)
	var record []byte
	err := row.Scan(&record)
	return record, err
}

const setState = `insert into lighting_state (id, record, updated_at)
values (1, ?, ?)
on conflict (id) do update set record = excluded.record, updated_at = excluded.updated_at`

type SetStateParams struct {
	Record    []byte
	UpdatedAt int64
}

func (q *Queries) SetState(ctx context.Context, arg SetStateParams) error {
	_, err := q.db.ExecContext(ctx, setState, arg.Record, arg.UpdatedAt)
	return err
}

const deleteState = `delete from lighting_state`

func (q *Queries) DeleteState(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteState)
	return err
}

const dumpTables = `select sql from sqlite_master where type = 'table' and name not like 'sqlite_%' order by name`

func (q *Queries) DumpTables(ctx context.Context) ([]*string, error) {
	return q.dump(ctx, dumpTables)
}

const dumpRest = `select sql from sqlite_master where type <> 'table' and name not like 'sqlite_%' order by name`

func (q *Queries) DumpRest(ctx context.Context) ([]*string, error) {
	return q.dump(ctx, dumpRest)
}

func (q *Queries) dump(ctx context.Context, query string) ([]*string, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*string
	for rows.Next() {
		var stmt *string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		items = append(items, stmt)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
