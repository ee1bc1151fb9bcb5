// Package repository implements the PostgreSQL storage for subscribers,
// managed devices, hotspot vouchers and the audit log.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// pgx driver registration for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage wraps the PostgreSQL connection pool.
type Storage struct {
	DB *sql.DB
}

// New opens a connection to PostgreSQL and verifies it with a ping.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady verifies the schema has been migrated.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscribers'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscribers missing or query error: %w", err)
	}
	return nil
}
