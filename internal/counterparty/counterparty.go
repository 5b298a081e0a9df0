// Package counterparty looks up the other party of an order: store customers
// for invoices and farmers for broker sales.
package counterparty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/krishimarket/krishimarket/internal/store"
)

// MinQueryLength is the shortest trimmed query that reaches the backing store.
const MinQueryLength = 3

// ErrUnknownRole indicates a role without a lookup table.
var ErrUnknownRole = errors.New("counterparty: unknown role")

// Role names a counterparty kind.
type Role string

const (
	Customer Role = "customer"
	Farmer   Role = "farmer"
)

type lookup struct {
	table       string
	ownerColumn string
	nameColumn  string
	match       []string
	pageSize    int
}

var lookups = map[Role]lookup{
	Customer: {
		table:       "store_customers",
		ownerColumn: "owner_id",
		nameColumn:  "name",
		match:       []string{"name", "phone"},
		pageSize:    10,
	},
	Farmer: {
		table:      "farmers",
		nameColumn: "full_name",
		match:      []string{"full_name", "phone", "email"},
		pageSize:   5,
	},
}

// Tables lists the tables the searcher reads.
func Tables() []string {
	return []string{"store_customers", "farmers"}
}

// PageSize reports the result cap for role.
func PageSize(role Role) int {
	return lookups[role].pageSize
}

// Party is a frozen view of a counterparty record.
type Party struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
}

// Contact returns the phone number, falling back to email.
func (p Party) Contact() string {
	if p.Phone != "" {
		return p.Phone
	}
	return p.Email
}

// Recorder receives search outcomes.
type Recorder interface {
	ObserveSearch(role, outcome string)
}

// Searcher resolves counterparties against the store.
type Searcher struct {
	db       store.Store
	logger   *slog.Logger
	recorder Recorder
	group    singleflight.Group
}

// NewSearcher constructs a Searcher. recorder may be nil.
func NewSearcher(db store.Store, logger *slog.Logger, recorder Recorder) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{db: db, logger: logger, recorder: recorder}
}

// Search returns up to the role's page size of parties whose name, phone or
// (farmers) email contains query, case-insensitively, in backing-store order.
// ownerID scopes roles that belong to an owner. Queries shorter than
// MinQueryLength return nil without a lookup. Lookup failures are logged and
// reported as no results.
func (s *Searcher) Search(ctx context.Context, role Role, ownerID, query string) []Party {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return nil
	}
	l, ok := lookups[role]
	if !ok {
		s.logger.Warn("counterparty search for unknown role", slog.String("role", string(role)))
		return nil
	}

	key := string(role) + "\x00" + ownerID + "\x00" + strings.ToLower(query)
	v, err, _ := s.group.Do(key, func() (any, error) {
		q := store.Query{
			Match: &store.Match{Columns: l.match, Pattern: query},
			Limit: l.pageSize,
		}
		if l.ownerColumn != "" {
			q.Eq = map[string]any{l.ownerColumn: ownerID}
		}
		return s.db.Select(ctx, l.table, q)
	})
	if err != nil {
		s.observe(role, "error")
		s.logger.Warn("counterparty search failed",
			slog.String("role", string(role)),
			slog.Any("error", err))
		return nil
	}

	rows := v.([]store.Row)
	parties := make([]Party, 0, len(rows))
	for _, row := range rows {
		parties = append(parties, fromRow(role, l, row))
	}
	if len(parties) == 0 {
		s.observe(role, "miss")
	} else {
		s.observe(role, "hit")
	}
	return parties
}

// Get loads one party by id. Owner-scoped roles only resolve rows of ownerID.
func (s *Searcher) Get(ctx context.Context, role Role, ownerID, id string) (Party, error) {
	l, ok := lookups[role]
	if !ok {
		return Party{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	row, err := s.db.Get(ctx, l.table, id)
	if err != nil {
		return Party{}, fmt.Errorf("counterparty: get %s: %w", role, err)
	}
	if l.ownerColumn != "" && row.String(l.ownerColumn) != ownerID {
		return Party{}, fmt.Errorf("counterparty: get %s: %w", role, store.ErrNotFound)
	}
	return fromRow(role, l, row), nil
}

func (s *Searcher) observe(role Role, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveSearch(string(role), outcome)
	}
}

func fromRow(role Role, l lookup, row store.Row) Party {
	return Party{
		ID:       row.String("id"),
		Role:     role,
		Name:     row.String(l.nameColumn),
		Phone:    row.String("phone"),
		Email:    row.String("email"),
		Location: row.String("farm_location"),
	}
}
