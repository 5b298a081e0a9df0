//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/krishimarket/krishimarket/internal/platform/db"
	"github.com/krishimarket/krishimarket/internal/store"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("krishimarket"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(connStr))

	pool, err := db.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	s := store.NewPostgres(pool, "store_owners", "store_customers", "store_invoices", "store_invoice_items")

	ownerID := uuid.NewString()
	_, err := s.Insert(ctx, "store_owners", store.Row{"id": ownerID, "full_name": "Meena", "shop_name": "Meena Agro"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "store_customers", store.Row{"owner_id": ownerID, "name": "Ramesh Patil", "phone": "9800000001"})
	require.NoError(t, err)

	rows, err := s.Select(ctx, "store_customers", store.Query{
		Eq:    map[string]any{"owner_id": ownerID},
		Match: &store.Match{Columns: []string{"name", "phone"}, Pattern: "RAMESH"},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ownerID, rows[0].String("owner_id"))

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		id, err := tx.Insert(ctx, "store_invoices", store.Row{
			"owner_id":        ownerID,
			"document_number": "INV-240309-0042",
			"document_date":   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			"subtotal":        400.0,
			"tax_total":       34.0,
			"grand_total":     434.0,
			"payment_status":  "paid",
		})
		if err != nil {
			return err
		}
		if err := tx.InsertMany(ctx, "store_invoice_items", []store.Row{
			{"invoice_id": id, "label": "Rice", "quantity": 10.0, "unit_price": 20.0, "tax_rate": 5.0, "tax_amount": 10.0, "line_total": 210.0, "line_order": 1},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	invoices, err := s.Select(ctx, "store_invoices", store.Query{Eq: map[string]any{"owner_id": ownerID}})
	require.NoError(t, err)
	assert.Empty(t, invoices, "rolled back transaction must not leave a header behind")
}
