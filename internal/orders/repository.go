package orders

import (
	"context"
	"fmt"

	"github.com/krishimarket/krishimarket/internal/store"
)

const productsTable = "store_products"

// Repository persists orders through the generic store.
type Repository struct {
	db store.Store
}

// NewRepository constructs a Repository.
func NewRepository(db store.Store) *Repository {
	return &Repository{db: db}
}

// Create writes the header and then its items in one transaction, so a failed
// item insert leaves no header behind.
func (r *Repository) Create(ctx context.Context, wf Workflow, ownerID string, o Order) (string, error) {
	var headerID string
	err := r.db.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		id, err := tx.Insert(ctx, wf.HeaderTable, wf.headerRow(ownerID, o))
		if err != nil {
			return fmt.Errorf("insert %s: %w", wf.HeaderTable, err)
		}
		if err := tx.InsertMany(ctx, wf.ItemTable, wf.itemRows(id, o.Items)); err != nil {
			return fmt.Errorf("insert %s: %w", wf.ItemTable, err)
		}
		headerID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return headerID, nil
}

// ListRecent returns the owner's latest orders, newest first.
func (r *Repository) ListRecent(ctx context.Context, wf Workflow, ownerID string, limit int) ([]Summary, error) {
	rows, err := r.db.Select(ctx, wf.HeaderTable, store.Query{
		Eq:      map[string]any{wf.OwnerColumn: ownerID},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", wf.HeaderTable, err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryFromRow(wf, row))
	}
	return out, nil
}

// Product loads one catalog entry owned by ownerID.
func (r *Repository) Product(ctx context.Context, ownerID, productID string) (Product, error) {
	row, err := r.db.Get(ctx, productsTable, productID)
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	if row.String("owner_id") != ownerID {
		return Product{}, fmt.Errorf("get product: %w", store.ErrNotFound)
	}
	return productFromRow(row), nil
}

// Products lists the owner's catalog by name.
func (r *Repository) Products(ctx context.Context, ownerID string) ([]Product, error) {
	rows, err := r.db.Select(ctx, productsTable, store.Query{
		Eq:      map[string]any{"owner_id": ownerID},
		OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, productFromRow(row))
	}
	return out, nil
}
