// Package storage is the SQLite-backed document gateway.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"
	"budget/internal/gateway"

	_ "modernc.org/sqlite"
)

const (
	selectDocument = `SELECT body FROM documents WHERE collection = ? AND id = ?`
	upsertDocument = `INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	selectUpdatedAt = `SELECT updated_at FROM documents WHERE collection = ? AND id = ?`
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements gateway.Gateway.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Document, error) {
	var body string
	err := r.db.QueryRowContext(ctx, selectDocument, gateway.Collection, gateway.DocumentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	var doc core.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

// Save implements gateway.Gateway.
func (r *SQLiteRepository) Save(ctx context.Context, doc core.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertDocument,
		gateway.Collection, gateway.DocumentID, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// UpdatedAt reports when the document was last written.
func (r *SQLiteRepository) UpdatedAt(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx, selectUpdatedAt, gateway.Collection, gateway.DocumentID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, gateway.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select updated_at: %w", err)
	}
	return ts, nil
}
