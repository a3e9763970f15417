package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductStore keeps the catalog in products and product_sizes. Prices
// travel as text so NUMERIC values are never rounded through float64.
type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

var (
	_ catalog.Store     = (*ProductStore)(nil)
	_ orders.Inventory  = (*ProductStore)(nil)
	_ orders.Transactor = (*ProductStore)(nil)
)

func (s *ProductStore) Create(ctx context.Context, p catalog.Product) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, price, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4, $5)`,
			p.ID, p.Name, p.Price.String(), p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		rows := make([][]any, 0, len(p.Sizes))
		for i, sz := range p.Sizes {
			rows = append(rows, []any{p.ID, sz.Label, sz.Quantity, i})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"product_sizes"},
			[]string{"product_id", "size", "quantity", "position"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert sizes: %w", err)
		}
		return nil
	})
}

func (s *ProductStore) Get(ctx context.Context, id string) (catalog.Product, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, price::text, created_at, updated_at
		FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrProductNotFound
		}
		return catalog.Product{}, err
	}

	list := []catalog.Product{p}
	if err := loadSizes(ctx, s.pool, list); err != nil {
		return catalog.Product{}, err
	}
	return list[0], nil
}

func (s *ProductStore) ByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return queryProducts(ctx, s.pool, `
		SELECT id, name, price::text, created_at, updated_at
		FROM products WHERE id = ANY($1) ORDER BY id`, ids)
}

// List matches the name as a case-insensitive substring and the size as a
// case-insensitive label, whatever its quantity.
func (s *ProductStore) List(ctx context.Context, f catalog.Filter, req page.Request) ([]catalog.Product, error) {
	return queryProducts(ctx, s.pool, `
		SELECT p.id, p.name, p.price::text, p.created_at, p.updated_at
		FROM products p
		WHERE ($1::text = '' OR strpos(lower(p.name), lower($1::text)) > 0)
		  AND ($2::text = '' OR EXISTS (
		        SELECT 1 FROM product_sizes s
		        WHERE s.product_id = p.id AND lower(s.size) = lower($2::text)))
		ORDER BY p.created_at, p.id
		LIMIT $3 OFFSET $4`,
		f.Name, f.Size, req.Limit, req.Offset)
}

func (s *ProductStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *ProductStore) Snapshot(ctx context.Context, ids []string) (orders.Snapshot, error) {
	return inventory{q: s.pool}.Snapshot(ctx, ids)
}

func (s *ProductStore) Decrement(ctx context.Context, productID, size string, qty int) error {
	return inventory{q: s.pool}.Decrement(ctx, productID, size, qty)
}

func (s *ProductStore) Increment(ctx context.Context, productID, size string, qty int) error {
	return inventory{q: s.pool}.Increment(ctx, productID, size, qty)
}

// InTx scopes a whole reservation in one transaction. The snapshot taken
// inside it holds share locks on the product rows until commit.
func (s *ProductStore) InTx(ctx context.Context, fn func(ctx context.Context, inv orders.Inventory) error) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, inventory{q: tx, lock: true})
	})
}

type inventory struct {
	q    querier
	lock bool
}

func (i inventory) Snapshot(ctx context.Context, ids []string) (orders.Snapshot, error) {
	sql := `
		SELECT id, name, price::text, created_at, updated_at
		FROM products WHERE id = ANY($1) ORDER BY id`
	if i.lock {
		sql += ` FOR SHARE`
	}
	list, err := queryProducts(ctx, i.q, sql, ids)
	if err != nil {
		return nil, err
	}
	snap := make(orders.Snapshot, len(list))
	for _, p := range list {
		snap[p.ID] = p
	}
	return snap, nil
}

func (i inventory) Decrement(ctx context.Context, productID, size string, qty int) error {
	tag, err := i.q.Exec(ctx, `
		UPDATE product_sizes SET quantity = quantity - $3
		WHERE product_id = $1 AND size = $2 AND quantity >= $3`,
		productID, size, qty)
	if err != nil {
		return fmt.Errorf("decrement: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return i.missing(ctx, productID, size, catalog.ErrInsufficientStock)
}

func (i inventory) Increment(ctx context.Context, productID, size string, qty int) error {
	tag, err := i.q.Exec(ctx, `
		UPDATE product_sizes SET quantity = quantity + $3
		WHERE product_id = $1 AND size = $2`,
		productID, size, qty)
	if err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return i.missing(ctx, productID, size, catalog.ErrUnknownSize)
}

// missing explains a conditional update that touched no row.
func (i inventory) missing(ctx context.Context, productID, size string, fallback error) error {
	var sizeExists, productExists bool
	if err := i.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM product_sizes WHERE product_id = $1 AND size = $2),
		       EXISTS (SELECT 1 FROM products WHERE id = $1)`,
		productID, size,
	).Scan(&sizeExists, &productExists); err != nil {
		return fmt.Errorf("check stock row: %w", err)
	}
	switch {
	case !productExists:
		return catalog.ErrProductNotFound
	case !sizeExists:
		return catalog.ErrUnknownSize
	}
	return fallback
}

func queryProducts(ctx context.Context, q querier, sql string, args ...any) ([]catalog.Product, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	list := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	rows.Close()

	if err := loadSizes(ctx, q, list); err != nil {
		return nil, err
	}
	return list, nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p     catalog.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	p.CreatedAt, p.UpdatedAt = utc(p.CreatedAt), utc(p.UpdatedAt)
	return p, nil
}

// loadSizes fills Sizes for every product in list, in stored position order.
func loadSizes(ctx context.Context, q querier, list []catalog.Product) error {
	if len(list) == 0 {
		return nil
	}
	idx := make(map[string]int, len(list))
	ids := make([]string, 0, len(list))
	for i, p := range list {
		idx[p.ID] = i
		ids = append(ids, p.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, size, quantity
		FROM product_sizes WHERE product_id = ANY($1)
		ORDER BY product_id, position`, ids)
	if err != nil {
		return fmt.Errorf("query sizes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			sz catalog.Size
		)
		if err := rows.Scan(&id, &sz.Label, &sz.Quantity); err != nil {
			return fmt.Errorf("scan size: %w", err)
		}
		if i, ok := idx[id]; ok {
			list[i].Sizes = append(list[i].Sizes, sz)
		}
	}
	return rows.Err()
}

func utc(t time.Time) time.Time { return t.UTC() }
