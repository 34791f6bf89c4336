// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package captioncache persists picture descriptions in SQLite so reruns
// over the same document do not call the vision model again.
package captioncache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Key identifies a cached description: the same image captioned by the
// same model with the same prompt.
type Key struct {
	ImageSHA string
	Model    string
	Prompt   string
}

// KeyFor hashes img and combines it with model and prompt.
func KeyFor(img []byte, model, prompt string) Key {
	sum := sha256.Sum256(img)
	return Key{ImageSHA: hex.EncodeToString(sum[:]), Model: model, Prompt: prompt}
}

// Store is a caption cache backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening caption cache: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS captions (
		image_sha TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (image_sha, model, prompt)
	)`)
	return err
}

// Get returns the cached description for key. ok is false on a miss.
func (s *Store) Get(ctx context.Context, key Key) (text string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT text FROM captions WHERE image_sha = ? AND model = ? AND prompt = ?`,
		key.ImageSHA, key.Model, key.Prompt,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading caption cache: %w", err)
	}
	return text, true, nil
}

// Put stores text under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key Key, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captions (image_sha, model, prompt, text, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (image_sha, model, prompt) DO UPDATE SET
		   text = excluded.text,
		   created_at = excluded.created_at`,
		key.ImageSHA, key.Model, key.Prompt, text, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing caption cache: %w", err)
	}
	return nil
}

// Len returns the number of cached descriptions.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting captions: %w", err)
	}
	return n, nil
}
