package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/models"

	_ "github.com/lib/pq"
)

// orderTable holds the dialect specific statements of an order history table.
type orderTable struct {
	db           *sql.DB
	insertQuery  string
	listQuery    string
	marketsQuery string
}

// SaveOrder implements data.OrderStore
func (t *orderTable) SaveOrder(ctx context.Context, order models.OrderRecord) error {
	res, err := t.db.ExecContext(ctx, t.insertQuery,
		order.ID,
		order.MarketID,
		string(order.Side),
		order.Price,
		order.Amount,
		order.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", data.ErrOrderExists, order.ID)
	}
	return nil
}

// ListOrders implements data.OrderStore
func (t *orderTable) ListOrders(ctx context.Context, marketID string) ([]models.OrderRecord, error) {
	rows, err := t.db.QueryContext(ctx, t.listQuery, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []models.OrderRecord
	for rows.Next() {
		var (
			o    models.OrderRecord
			side string
		)
		if err := rows.Scan(&o.ID, &o.MarketID, &side, &o.Price, &o.Amount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if o.Side, err = models.ParseOrderSide(side); err != nil {
			return nil, fmt.Errorf("order %s: %w", o.ID, err)
		}
		result = append(result, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return result, nil
}

// ListMarkets implements data.OrderStore
func (t *orderTable) ListMarkets(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, t.marketsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (t *orderTable) Close() error {
	return t.db.Close()
}

// PostgresStorage keeps the order history in PostgreSQL.
type PostgresStorage struct {
	orderTable
}

func NewPostgresStorage(connStr string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{orderTable{
		db: db,
		insertQuery: `
			INSERT INTO orders (id, market_id, side, price, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`,
		listQuery: `
			SELECT id, market_id, side, price, amount, created_at
			FROM orders
			WHERE market_id = $1
			ORDER BY seq ASC
		`,
		marketsQuery: `SELECT DISTINCT market_id FROM orders ORDER BY market_id`,
	}}

	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

func (s *PostgresStorage) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			seq BIGSERIAL PRIMARY KEY,
			id VARCHAR(100) UNIQUE NOT NULL,
			market_id VARCHAR(50) NOT NULL,
			side VARCHAR(4) NOT NULL,
			price NUMERIC(36, 8) NOT NULL,
			amount NUMERIC(36, 8) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_orders_market ON orders (market_id, seq)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
