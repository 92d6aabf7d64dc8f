// internal/insights/history/postgres.go
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"audit-insights/internal/insights/assemble"
)

const (
	seenKeysQuery = `SELECT DISTINCT insight_key FROM audit_insight_keys WHERE audit_id = $1 AND section_id <> $2 ORDER BY insight_key`
	recordQuery   = `INSERT INTO audit_insight_keys (audit_id, section_id, insight_key, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (audit_id, insight_key) DO NOTHING`
)

// Schema creates the table backing PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS audit_insight_keys (
	audit_id    TEXT        NOT NULL,
	section_id  TEXT        NOT NULL,
	insight_key TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (audit_id, insight_key)
)`

// PostgresStore keeps emitted keys in audit_insight_keys. The first section
// to emit a key owns it.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: create schema: %v", ErrHistoryUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) SeenKeys(ctx context.Context, auditID, excludeSection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, seenKeysQuery, auditID, excludeSection)
	if err != nil {
		return nil, fmt.Errorf("%w: query seen keys: %v", ErrHistoryUnavailable, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scan seen key: %v", ErrHistoryUnavailable, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate seen keys: %v", ErrHistoryUnavailable, err)
	}
	return keys, nil
}

func (s *PostgresStore) Record(ctx context.Context, auditID, sectionID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrHistoryUnavailable, err)
	}

	createdAt := s.now().UTC()
	for _, k := range keys {
		nk := assemble.NormalizeKey(k)
		if nk == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, recordQuery, auditID, sectionID, nk, createdAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: record key %s: %v", ErrHistoryUnavailable, nk, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrHistoryUnavailable, err)
	}
	return nil
}
