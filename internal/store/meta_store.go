package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// SetMeta writes a scalar value under entry.Key, overwriting any previous one.
func (s *SQLiteStore) SetMeta(ctx context.Context, entry model.MetaEntry) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("marshaling metadata %q: %w", entry.Key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)`,
		entry.Key, string(value), entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting metadata %q: %w", entry.Key, err)
	}
	return nil
}

// GetMeta reads a metadata entry. It returns (nil, nil) when the key is unset.
// Numbers decode as float64.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (*model.MetaEntry, error) {
	var (
		raw       string
		updatedAt time.Time
	)
	err := s.db.QueryRowxContext(ctx,
		"SELECT value, updated_at FROM metadata WHERE key = ?", key,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting metadata %q: %w", key, err)
	}

	entry := &model.MetaEntry{Key: key, UpdatedAt: updatedAt.UTC()}
	if err := json.Unmarshal([]byte(raw), &entry.Value); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata %q: %w", key, err)
	}
	return entry, nil
}

// ClearMeta removes every metadata entry.
func (s *SQLiteStore) ClearMeta(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM metadata"); err != nil {
		return fmt.Errorf("clearing metadata: %w", err)
	}
	return nil
}
