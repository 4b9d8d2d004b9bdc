package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orders (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT     NOT NULL UNIQUE,
    market_id  TEXT     NOT NULL,
    side       TEXT     NOT NULL,
    price      TEXT     NOT NULL,
    amount     TEXT     NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_market ON orders(market_id, seq);
`

// SQLiteStorage keeps the order history in a local SQLite file.
// Prices and amounts are stored as decimal strings so no precision is lost.
type SQLiteStorage struct {
	orderTable
}

// NewSQLiteStorage opens (or creates) the database at path; ":memory:" is accepted.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{orderTable{
		db: db,
		insertQuery: `INSERT INTO orders (id, market_id, side, price, amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
		listQuery: `SELECT id, market_id, side, price, amount, created_at
			FROM orders WHERE market_id = ? ORDER BY seq ASC`,
		marketsQuery: `SELECT DISTINCT market_id FROM orders ORDER BY market_id`,
	}}, nil
}
