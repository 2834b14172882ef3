package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"attendance.service/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewConnection creates and verifies a database pool. When instrumentation is
// enabled every query is traced through otelsql.
func NewConnection(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	if cfg.DBInstrumented {
		db, err = openInstrumented(cfg.DSN())
	} else {
		db, err = sql.Open("pgx", cfg.DSN())
	}
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping the database to verify the connection is alive
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}
