package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krishimarket/krishimarket/internal/platform/db"
)

const uniqueViolation = "23505"

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	Begin(context.Context) (pgx.Tx, error)
}

// Postgres implements Store on a pgx pool or transaction.
type Postgres struct {
	db     dbtx
	tables map[string]struct{}
}

// NewPostgres constructs a Postgres store restricted to the given tables.
func NewPostgres(conn dbtx, tables ...string) *Postgres {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &Postgres{db: conn, tables: allowed}
}

func (p *Postgres) table(name string) (string, error) {
	if _, ok := p.tables[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// Insert adds a row and returns its generated id.
func (p *Postgres) Insert(ctx context.Context, table string, row Row) (string, error) {
	tbl, err := p.table(table)
	if err != nil {
		return "", err
	}
	sql, args := insertSQL(tbl, row)
	rows, err := p.db.Query(ctx, sql+" RETURNING id::text", args...)
	if err != nil {
		return "", mapError(err)
	}
	id, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// InsertMany adds rows in a single round trip. Rows are inserted in slice order.
func (p *Postgres) InsertMany(ctx context.Context, table string, rows []Row) error {
	tbl, err := p.table(table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		sql, args := insertSQL(tbl, row)
		batch.Queue(sql, args...)
	}
	results := p.db.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return mapError(err)
		}
	}
	return mapError(results.Close())
}

// Get loads a row by primary key.
func (p *Postgres) Get(ctx context.Context, table, id string) (Row, error) {
	tbl, err := p.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, "SELECT * FROM "+tbl+" WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}
	return normalize(m), nil
}

// Select returns rows matching the query.
func (p *Postgres) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	tbl, err := p.table(table)
	if err != nil {
		return nil, err
	}
	sql, args := selectSQL(tbl, q)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalize(m))
	}
	return out, nil
}

// Update overwrites the given columns of one row. Last write wins.
func (p *Postgres) Update(ctx context.Context, table, id string, values Row) error {
	tbl, err := p.table(table)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	cols := sortedColumns(values)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1))
		args = append(args, values[col])
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", tbl, strings.Join(sets, ", "), len(args))
	tag, err := p.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one row by primary key.
func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	tbl, err := p.table(table)
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx, "DELETE FROM "+tbl+" WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WithTx runs fn against a transaction-scoped store.
func (p *Postgres) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, p.db, func(tx pgx.Tx) error {
		return fn(ctx, &Postgres{db: tx, tables: p.tables})
	})
}

func insertSQL(tbl string, row Row) (string, []any) {
	cols := sortedColumns(row)
	names := make([]string, 0, len(cols))
	params := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		names = append(names, pgx.Identifier{col}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+1))
		args = append(args, row[col])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl, strings.Join(names, ", "), strings.Join(params, ", ")), args
}

func selectSQL(tbl string, q Query) (string, []any) {
	var conditions []string
	var args []any

	for _, col := range sortedColumns(q.Eq) {
		val := q.Eq[col]
		if val == nil {
			conditions = append(conditions, pgx.Identifier{col}.Sanitize()+" IS NULL")
			continue
		}
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), len(args)))
	}
	if q.Match != nil && len(q.Match.Columns) > 0 {
		args = append(args, "%"+escapeLike(q.Match.Pattern)+"%")
		ors := make([]string, 0, len(q.Match.Columns))
		for _, col := range q.Match.Columns {
			ors = append(ors, fmt.Sprintf("%s::text ILIKE $%d", pgx.Identifier{col}.Sanitize(), len(args)))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	sql := "SELECT * FROM " + tbl
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	if q.OrderBy != "" {
		sql += " ORDER BY " + pgx.Identifier{q.OrderBy}.Sanitize()
		if q.Desc {
			sql += " DESC"
		}
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortedColumns[V any](m map[string]V) []string {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// normalize converts driver specific values into the types Row accessors expect.
func normalize(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		if b, ok := v.([16]byte); ok {
			row[k] = uuid.UUID(b).String()
			continue
		}
		row[k] = v
	}
	return row
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
