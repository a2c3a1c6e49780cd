package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/store"
)

// Sync states of an entry.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

const timeLayout = time.RFC3339Nano

const (
	queryNextID = `SELECT COALESCE(MAX(id), 0) + 1 FROM entries WHERE variant = ?`

	queryInsertEntry = `INSERT INTO entries
	(variant, id, amount_cents, category, counterpart, occurred_at, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryListEntries = `SELECT id, amount_cents, category, counterpart, occurred_at, notes
	FROM entries WHERE variant = ? ORDER BY id`

	queryGetEntry = `SELECT id, amount_cents, category, counterpart, occurred_at, notes
	FROM entries WHERE variant = ? AND id = ?`

	queryPendingSync = `SELECT variant, id, version FROM entries
	WHERE sync_status = 'pending' ORDER BY created_at, variant, id LIMIT ?`

	queryMarkSync = `UPDATE entries SET sync_status = ? WHERE variant = ? AND id = ?`
)

// SQLiteRepository is the durable entry store. Ids are allocated per
// variant inside the insert transaction, so they stay unique and
// increasing within each collection.
type SQLiteRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:     db,
		now:    time.Now,
		logger: log.NewComponentLogger(log.ComponentStorage),
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements store.EntryWriter.
func (r *SQLiteRepository) Append(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, queryNextID, string(e.Variant)).Scan(&id); err != nil {
		return core.Entry{}, fmt.Errorf("allocate %s id: %w", e.Variant, err)
	}

	_, err = tx.ExecContext(ctx, queryInsertEntry,
		string(e.Variant), id, e.Amount.Cents, e.Category, e.Counterpart,
		e.Date.Format(timeLayout), e.Notes, r.now().UTC().Format(timeLayout))
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert %s: %w", e.Variant, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Entry{}, fmt.Errorf("commit: %w", err)
	}

	e.ID = id
	r.logger.DebugContext(ctx, "Entry saved to SQLite",
		log.FieldEntryVariant, e.Variant,
		log.FieldEntryID, id,
		log.FieldAmountCents, e.Amount.Cents)
	return e, nil
}

// List implements store.EntryLister.
func (r *SQLiteRepository) List(ctx context.Context, v core.Variant) ([]core.Entry, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidVariant, v)
	}
	rows, err := r.db.QueryContext(ctx, queryListEntries, string(v))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", v, err)
	}
	defer rows.Close()

	out := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows, v)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", v, err)
	}
	return out, nil
}

// Get implements store.EntryGetter.
func (r *SQLiteRepository) Get(ctx context.Context, v core.Variant, id int64) (core.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, queryGetEntry, string(v), id), v)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("%s %d: %w", v, id, store.ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, v core.Variant) (core.Entry, error) {
	var (
		e        core.Entry
		occurred string
	)
	if err := s.Scan(&e.ID, &e.Amount.Cents, &e.Category, &e.Counterpart, &occurred, &e.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, err
		}
		return core.Entry{}, fmt.Errorf("scan %s: %w", v, err)
	}
	t, err := time.Parse(timeLayout, occurred)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse occurred_at of %s %d: %w", v, e.ID, err)
	}
	e.Variant = v
	e.Date = t
	return e, nil
}

// PendingEntry identifies an entry that still has to reach the spreadsheet.
type PendingEntry struct {
	Variant core.Variant
	ID      int64
	Version int64
}

// PendingSync returns up to limit entries waiting for sync, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := r.db.QueryContext(ctx, queryPendingSync, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var (
			p       PendingEntry
			variant string
		)
		if err := rows.Scan(&variant, &p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		p.Variant = core.Variant(variant)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful spreadsheet append.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, v core.Variant, id int64) error {
	if err := r.markSync(ctx, v, id, SyncDone); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	r.logger.InfoContext(ctx, "Entry marked as synced", log.FieldEntryVariant, v, log.FieldEntryID, id)
	return nil
}

// MarkSyncError records a failed spreadsheet append.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, v core.Variant, id int64) error {
	if err := r.markSync(ctx, v, id, SyncError); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Entry marked with sync error", log.FieldEntryVariant, v, log.FieldEntryID, id)
	return nil
}

func (r *SQLiteRepository) markSync(ctx context.Context, v core.Variant, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, queryMarkSync, status, string(v), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %d: %w", v, id, store.ErrNotFound)
	}
	return nil
}
