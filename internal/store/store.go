// Package store provides table-name keyed CRUD over the backing database.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotFound indicates no row matched the id or filter.
	ErrNotFound = errors.New("store: row not found")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate row")
	// ErrUnknownTable indicates a table outside the configured whitelist.
	ErrUnknownTable = errors.New("store: unknown table")
)

// Store is the generic persistence capability consumed by domain packages.
type Store interface {
	Insert(ctx context.Context, table string, row Row) (string, error)
	InsertMany(ctx context.Context, table string, rows []Row) error
	Get(ctx context.Context, table, id string) (Row, error)
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Update(ctx context.Context, table, id string, values Row) error
	Delete(ctx context.Context, table, id string) error
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}

// Match is a case-insensitive substring match OR'd across columns.
type Match struct {
	Columns []string
	Pattern string
}

// Query narrows a Select. Eq filters are AND'd with the optional Match.
type Query struct {
	Eq      map[string]any
	Match   *Match
	OrderBy string
	Desc    bool
	Limit   int
}

// Row is one record keyed by column name.
type Row map[string]any

// String returns the column as a string, or "" when absent or NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr returns nil for absent, NULL or empty values.
func (r Row) StringPtr(col string) *string {
	s := r.String(col)
	if s == "" {
		return nil
	}
	return &s
}

// Float returns the column as float64.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case *float64:
		if v == nil {
			return 0
		}
		return *v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// FloatPtr returns nil when the column is absent or NULL.
func (r Row) FloatPtr(col string) *float64 {
	switch v := r[col].(type) {
	case nil:
		return nil
	case *float64:
		return v
	default:
		f := r.Float(col)
		return &f
	}
}

// Int returns the column as int.
func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the column as bool.
func (r Row) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Time returns the column as time.Time, zero when absent.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return *v
	default:
		return time.Time{}
	}
}
