package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSQLOrdersColumns(t *testing.T) {
	sql, args := insertSQL(`"farmers"`, Row{"phone": "98", "full_name": "Ravi", "email": nil})

	assert.Equal(t, `INSERT INTO "farmers" ("email", "full_name", "phone") VALUES ($1, $2, $3)`, sql)
	assert.Equal(t, []any{nil, "Ravi", "98"}, args)
}

func TestSelectSQLCombinesFilters(t *testing.T) {
	sql, args := selectSQL(`"store_customers"`, Query{
		Eq:      map[string]any{"owner_id": "u-1"},
		Match:   &Match{Columns: []string{"name", "phone"}, Pattern: "ram"},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   10,
	})

	assert.Equal(t,
		`SELECT * FROM "store_customers" WHERE "owner_id" = $1 AND ("name"::text ILIKE $2 OR "phone"::text ILIKE $2) ORDER BY "created_at" DESC LIMIT $3`,
		sql)
	assert.Equal(t, []any{"u-1", "%ram%", 10}, args)
}

func TestSelectSQLNullFilter(t *testing.T) {
	sql, args := selectSQL(`"store_invoice_items"`, Query{Eq: map[string]any{"product_id": nil}})

	assert.Equal(t, `SELECT * FROM "store_invoice_items" WHERE "product_id" IS NULL`, sql)
	assert.Empty(t, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestUnknownTableRejected(t *testing.T) {
	p := NewPostgres(nil, "farmers")
	_, err := p.table("users")
	require.ErrorIs(t, err, ErrUnknownTable)

	name, err := p.table("farmers")
	require.NoError(t, err)
	assert.Equal(t, `"farmers"`, name)
}

func TestNormalizeConvertsUUIDBytes(t *testing.T) {
	raw := [16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}
	row := normalize(map[string]any{"id": raw, "quantity": 2.5})

	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", row.String("id"))
	assert.Equal(t, 2.5, row.Float("quantity"))
}

func TestRowAccessors(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	name := "Sita"
	row := Row{
		"name":      &name,
		"empty":     nil,
		"qty":       int32(4),
		"price":     "12.5",
		"harvested": true,
		"sown":      now,
	}

	assert.Equal(t, "Sita", row.String("name"))
	assert.Nil(t, row.StringPtr("empty"))
	assert.Equal(t, 4, row.Int("qty"))
	assert.Equal(t, 4.0, row.Float("qty"))
	assert.Equal(t, 12.5, row.Float("price"))
	assert.Nil(t, row.FloatPtr("missing"))
	assert.True(t, row.Bool("harvested"))
	assert.Equal(t, now, row.Time("sown"))
}
