// Package sqlite stores credentials in a SQLite database.
//
// Every slot is a row of the credentials table; a missing row is an empty slot.
// Reads go straight to the database, writes are serialized by a Worker.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"

	"github.com/womat/debug"
	_ "modernc.org/sqlite"
)

type Store struct {
	capacity int
	db       *sql.DB
	writer   *Worker
}

// Open opens or creates the database at path and applies the migrations.
func Open(ctx context.Context, path string, capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("sqlite: invalid capacity %d", capacity)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// one connection, sqlite allows a single writer anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	var beyond int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials WHERE slot >= ?;", capacity).Scan(&beyond); err == nil && beyond > 0 {
		debug.InfoLog.Printf("sqlite: %d credentials stored beyond capacity %d are ignored", beyond, capacity)
	}

	return &Store{capacity: capacity, db: db, writer: NewWorker(db)}, nil
}

func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) Read(ctx context.Context, index int) (wiegand.Credential, error) {
	if err := storage.CheckIndex(index, s.capacity); err != nil {
		return wiegand.Credential{}, err
	}

	var facility, user int
	err := s.db.QueryRowContext(ctx, `
SELECT facility, user
FROM credentials
WHERE slot = ?;
`, index).Scan(&facility, &user)

	if err == sql.ErrNoRows {
		return wiegand.Credential{}, nil
	}
	if err != nil {
		return wiegand.Credential{}, fmt.Errorf("read slot %d: %w", index, err)
	}

	return wiegand.Credential{Facility: uint8(facility), User: uint16(user)}, nil
}

// Write stores c in slot index; the empty credential deletes the row.
func (s *Store) Write(ctx context.Context, index int, c wiegand.Credential) error {
	if err := storage.CheckIndex(index, s.capacity); err != nil {
		return err
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if c.IsZero() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM credentials WHERE slot = ?;", index); err != nil {
				return fmt.Errorf("clear slot %d: %w", index, err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO credentials(slot, facility, user, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
  facility      = excluded.facility,
  user          = excluded.user,
  updated_at_ms = excluded.updated_at_ms;
`, index, int(c.Facility), int(c.User), time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("write slot %d: %w", index, err)
		}
		return nil
	})
}

// Find returns the lowest slot holding c using the identity index.
// It returns the same result as storage.Find.
func (s *Store) Find(ctx context.Context, c wiegand.Credential) (int, bool, error) {
	if c.IsZero() {
		return 0, false, nil
	}

	var slot int
	err := s.db.QueryRowContext(ctx, `
SELECT slot
FROM credentials
WHERE facility = ? AND user = ? AND slot < ?
ORDER BY slot
LIMIT 1;
`, int(c.Facility), int(c.User), s.capacity).Scan(&slot)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find %v: %w", c, err)
	}
	return slot, true, nil
}

func (s *Store) Close() error {
	s.writer.Close()
	return s.db.Close()
}
