package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

// SQLiteStore persists the ledger in a SQLite file. The webhook_id primary
// key makes Reserve atomic across concurrent requests.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the ledger database at path and
// applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create ledger dir %s: %w", dir, err)
		}
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return newSQLStore(sqlx.NewDb(db, "sqlite")), nil
}

func newSQLStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	// Single-writer: only one connection needed.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}
	return db, nil
}

func migrateDB(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate ledger: init source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migrate ledger: init db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate ledger: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate ledger: up: %w", err)
	}
	return nil
}

type ledgerRow struct {
	WebhookID   string        `db:"webhook_id"`
	EntityType  string        `db:"entity_type"`
	EntityID    string        `db:"entity_id"`
	ChangeType  string        `db:"change_type"`
	Fingerprint string        `db:"fingerprint"`
	Response    []byte        `db:"response"`
	ReservedAt  int64         `db:"reserved_at"`
	ProcessedAt sql.NullInt64 `db:"processed_at"`
}

func (r ledgerRow) record() Record {
	rec := Record{
		WebhookID:   r.WebhookID,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		ChangeType:  r.ChangeType,
		Fingerprint: r.Fingerprint,
		Response:    r.Response,
		ReservedAt:  time.UnixMilli(r.ReservedAt).UTC(),
	}
	if r.ProcessedAt.Valid {
		rec.ProcessedAt = time.UnixMilli(r.ProcessedAt.Int64).UTC()
	}
	return rec
}

const (
	insertReservation = `INSERT INTO webhook_ledger
		(webhook_id, entity_type, entity_id, change_type, fingerprint, reserved_at)
		VALUES (:webhook_id, :entity_type, :entity_id, :change_type, :fingerprint, :reserved_at)
		ON CONFLICT(webhook_id) DO NOTHING`
	selectRecord = `SELECT webhook_id, entity_type, entity_id, change_type, fingerprint,
		response, reserved_at, processed_at
		FROM webhook_ledger WHERE webhook_id = ?`
	finalizeRecord = `UPDATE webhook_ledger SET response = ?, processed_at = ?
		WHERE webhook_id = ? AND response IS NULL`
	deletePending = `DELETE FROM webhook_ledger WHERE webhook_id = ? AND response IS NULL`
)

func (s *SQLiteStore) Reserve(ctx context.Context, rec Record) (Record, bool, error) {
	if err := validID(rec.WebhookID); err != nil {
		return Record{}, false, err
	}
	reservedAt := rec.ReservedAt
	if reservedAt.IsZero() {
		reservedAt = s.now()
	}
	row := ledgerRow{
		WebhookID:   rec.WebhookID,
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		ChangeType:  rec.ChangeType,
		Fingerprint: rec.Fingerprint,
		ReservedAt:  reservedAt.UnixMilli(),
	}
	res, err := s.db.NamedExecContext(ctx, insertReservation, row)
	if err != nil {
		return Record{}, false, fmt.Errorf("reserve %s: %w", rec.WebhookID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, fmt.Errorf("reserve %s: rows affected: %w", rec.WebhookID, err)
	}
	if n == 1 {
		return row.record(), true, nil
	}
	existing, err := s.Lookup(ctx, rec.WebhookID)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, webhookID string, response []byte) error {
	if response == nil {
		response = []byte{}
	}
	res, err := s.db.ExecContext(ctx, finalizeRecord, response, s.now().UnixMilli(), webhookID)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", webhookID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed %s: rows affected: %w", webhookID, err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Lookup(ctx, webhookID); err != nil {
		return err
	}
	return ErrAlreadyProcessed
}

func (s *SQLiteStore) Release(ctx context.Context, webhookID string) error {
	if _, err := s.db.ExecContext(ctx, deletePending, webhookID); err != nil {
		return fmt.Errorf("release %s: %w", webhookID, err)
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, webhookID string) (Record, error) {
	var row ledgerRow
	if err := s.db.GetContext(ctx, &row, selectRecord, webhookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("lookup %s: %w", webhookID, err)
	}
	return row.record(), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
