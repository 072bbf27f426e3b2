// Package sqlite provides a SQLite-backed registration record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/storage"
	"github.com/mcoot/regwhelp/internal/storage/sqlite/migrations"
)

// Storage persists registration records in SQLite
type Storage struct {
	sqlDB *sql.DB
}

// Ensure Storage implements the interface
var _ storage.RecordStore = (*Storage)(nil)

// Open opens a SQLite store at path and applies embedded migrations
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Storage) FindRecord(ctx context.Context, accountName string) (*model.Record, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT account_name, external_account, token, validated, created_at, updated_at
FROM registration_records
WHERE account_name = ?`, accountName)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (s *Storage) CreateRecord(ctx context.Context, rec *model.Record) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO registration_records (account_name, external_account, token, validated, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AccountName, rec.ExternalAccount, rec.Token, boolToInt(rec.Validated),
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return model.ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (s *Storage) SaveRecord(ctx context.Context, rec *model.Record) error {
	// MAX keeps a stored validated flag set
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO registration_records (account_name, external_account, token, validated, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(account_name) DO UPDATE SET
    external_account = excluded.external_account,
    token = excluded.token,
    validated = MAX(registration_records.validated, excluded.validated),
    updated_at = excluded.updated_at`,
		rec.AccountName, rec.ExternalAccount, rec.Token, boolToInt(rec.Validated),
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *Storage) ListRecords(ctx context.Context) ([]*model.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT account_name, external_account, token, validated, created_at, updated_at
FROM registration_records
ORDER BY account_name`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var (
		rec       model.Record
		validated int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&rec.AccountName, &rec.ExternalAccount, &rec.Token, &validated, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Validated = validated != 0
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
