// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krishimarket/krishimarket/internal/store"
)

// Memory keeps rows per table in insertion order.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]store.Row
	calls  map[string]int
	errs   map[string]error
	now    func() time.Time
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]store.Row),
		calls:  make(map[string]int),
		errs:   make(map[string]error),
		now:    time.Now,
	}
}

// Seed appends rows directly, bypassing call counting.
func (m *Memory) Seed(table string, rows ...store.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], m.withDefaults(r))
	}
}

// Rows returns a copy of the rows stored in table.
func (m *Memory) Rows(table string) []store.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Calls reports how many times op ("insert", "insert_many", "get", "select",
// "update", "delete") was invoked on table.
func (m *Memory) Calls(op, table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+":"+table]
}

// TotalCalls reports all recorded calls.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FailOn makes the next and all later calls of op on table return err.
func (m *Memory) FailOn(op, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op+":"+table] = err
}

func (m *Memory) record(op, table string) error {
	key := op + ":" + table
	m.calls[key]++
	return m.errs[key]
}

func (m *Memory) Insert(ctx context.Context, table string, row store.Row) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insert", table); err != nil {
		return "", err
	}
	r := m.withDefaults(row)
	m.tables[table] = append(m.tables[table], r)
	return r.String("id"), nil
}

func (m *Memory) InsertMany(ctx context.Context, table string, rows []store.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insert_many", table); err != nil {
		return err
	}
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], m.withDefaults(row))
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, table, id string) (store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get", table); err != nil {
		return nil, err
	}
	for _, r := range m.tables[table] {
		if r.String("id") == id {
			return clone(r), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("select", table); err != nil {
		return nil, err
	}
	var out []store.Row
	for _, r := range m.tables[table] {
		if matches(r, q) {
			out = append(out, clone(r))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, table, id string, values store.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update", table); err != nil {
		return err
	}
	for _, r := range m.tables[table] {
		if r.String("id") == id {
			for k, v := range values {
				r[k] = v
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete", table); err != nil {
		return err
	}
	rows := m.tables[table]
	for i, r := range rows {
		if r.String("id") == id {
			m.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// WithTx restores every table to its prior state when fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, store.Store) error) error {
	m.mu.Lock()
	snapshot := make(map[string][]store.Row, len(m.tables))
	for t, rows := range m.tables {
		copied := make([]store.Row, 0, len(rows))
		for _, r := range rows {
			copied = append(copied, clone(r))
		}
		snapshot[t] = copied
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.tables = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) withDefaults(row store.Row) store.Row {
	r := clone(row)
	if r.String("id") == "" {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = m.now()
	}
	return r
}

func matches(r store.Row, q store.Query) bool {
	for col, want := range q.Eq {
		got, ok := r[col]
		if want == nil {
			if ok && deref(got) != nil {
				return false
			}
			continue
		}
		if !ok || fmt.Sprint(deref(got)) != fmt.Sprint(deref(want)) {
			return false
		}
	}
	if q.Match != nil && len(q.Match.Columns) > 0 {
		pattern := strings.ToLower(q.Match.Pattern)
		for _, col := range q.Match.Columns {
			if strings.Contains(strings.ToLower(r.String(col)), pattern) {
				return true
			}
		}
		return false
	}
	return true
}

func compare(a, b any) int {
	a, b = deref(a), deref(b)
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int:
		bv, _ := b.(int)
		return av - bv
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

func clone(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
