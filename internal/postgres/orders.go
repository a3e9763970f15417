package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

var _ orders.OrderStore = (*OrderStore)(nil)

func (s *OrderStore) Insert(ctx context.Context, o orders.Order) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, total, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4, $5)`,
			o.ID, o.UserID, o.Total.String(), o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, position, product_id, size, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
				o.ID, i, it.ProductID, it.Size, it.Quantity, it.UnitPrice.String(),
			); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *OrderStore) Exists(ctx context.Context, orderID string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID,
	).Scan(&ok); err != nil {
		return false, fmt.Errorf("check order %s: %w", orderID, err)
	}
	return ok, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string, req page.Request) ([]orders.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, total::text, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	list := make([]orders.Order, 0)
	idx := make(map[string]int)
	for rows.Next() {
		var (
			o     orders.Order
			total string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("order %s total %q: %w", o.ID, total, err)
		}
		o.CreatedAt, o.UpdatedAt = utc(o.CreatedAt), utc(o.UpdatedAt)
		idx[o.ID] = len(list)
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	rows.Close()

	if len(list) == 0 {
		return list, nil
	}
	ids := make([]string, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	if err := s.loadItems(ctx, ids, list, idx); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *OrderStore) loadItems(ctx context.Context, ids []string, list []orders.Order, idx map[string]int) error {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, product_id, size, quantity, unit_price::text
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      orders.OrderItem
			price   string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Size, &it.Quantity, &price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("order %s unit price %q: %w", orderID, price, err)
		}
		if i, ok := idx[orderID]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	return rows.Err()
}
