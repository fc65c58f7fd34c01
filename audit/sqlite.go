package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/altamira-data/queryhub/schema"
)

// ErrUserNotFound reports an unknown requester id.
var ErrUserNotFound = errors.New("audit: user not found")

const auditSchema = `
CREATE TABLE IF NOT EXISTS access_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	requester_tier TEXT NOT NULL DEFAULT '',
	query_text TEXT NOT NULL,
	tier TEXT NOT NULL,
	route TEXT,
	referenced_ids TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	denied_reason TEXT,
	cache_hit INTEGER NOT NULL DEFAULT 0,
	processing_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_access_log_requester ON access_log (requester_id, ts);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	clearance TEXT NOT NULL
);
`

// SQLiteStore is the file-backed Sink and Directory.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the audit database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Write(ctx context.Context, record Record) error {
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_log (ts, requester_id, requester_tier, query_text, tier, route, referenced_ids, success, denied_reason, cache_hit, processing_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339), record.RequesterID, string(record.RequesterTier),
		record.QueryText, string(record.Tier), string(record.Route),
		strings.Join(record.ReferencedIDs, ","), boolInt(record.Success),
		record.DeniedReason, boolInt(record.CacheHit), record.ProcessingTimeMs)
	if err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	var clearance string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, clearance FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Name, &clearance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit: get user: %w", err)
	}
	user.Clearance = schema.ParseTier(clearance)
	return &user, nil
}

func (s *SQLiteStore) SetUser(ctx context.Context, user User) error {
	if !user.Clearance.Valid() {
		return fmt.Errorf("audit: invalid clearance %q", user.Clearance)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, clearance) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, clearance = excluded.clearance`,
		user.ID, user.Name, string(user.Clearance))
	if err != nil {
		return fmt.Errorf("audit: set user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, clearance FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("audit: list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var clearance string
		if err := rows.Scan(&user.ID, &user.Name, &clearance); err != nil {
			return nil, fmt.Errorf("audit: scan user: %w", err)
		}
		user.Clearance = schema.ParseTier(clearance)
		users = append(users, user)
	}
	return users, rows.Err()
}

// RecentRecords returns the newest entries for a requester, newest first.
func (s *SQLiteStore) RecentRecords(ctx context.Context, requesterID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, requester_id, requester_tier, query_text, tier, route, referenced_ids, success, denied_reason, cache_hit, processing_ms
		FROM access_log WHERE requester_id = ? ORDER BY id DESC LIMIT ?`, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: recent records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var ts, requesterTier, tier, route, referenced string
		var success, cacheHit int
		if err := rows.Scan(&ts, &record.RequesterID, &requesterTier, &record.QueryText, &tier,
			&route, &referenced, &success, &record.DeniedReason, &cacheHit, &record.ProcessingTimeMs); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		record.Timestamp, _ = time.Parse(time.RFC3339, ts)
		record.RequesterTier = schema.Tier(requesterTier)
		record.Tier = schema.Tier(tier)
		record.Route = schema.Route(route)
		if referenced != "" {
			record.ReferencedIDs = strings.Split(referenced, ",")
		}
		record.Success = success != 0
		record.CacheHit = cacheHit != 0
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
