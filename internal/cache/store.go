package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"rommedia/internal/config"
	"rommedia/internal/match"
	"rommedia/internal/media"
	"rommedia/internal/rom"
	"rommedia/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var (
	// ErrLocked is returned when another process holds the cache.
	ErrLocked = errors.New("cache is in use by another rommedia run")
	// ErrNoEntry is returned when an asset is recorded for an unknown fingerprint.
	ErrNoEntry = errors.New("no cache entry for fingerprint")
)

// Store is the SQLite-backed cache.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	keys *services.KeyedMutex
	now  func() time.Time
}

// Open opens the cache configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.CacheDBPath())
}

// OpenPath opens or creates the cache database at path and takes the
// single-run lock beside it.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lock.Path())
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{
		db:   db,
		path: path,
		lock: lock,
		keys: services.NewKeyedMutex(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("release cache lock: %w", unlockErr)
		}
	}
	return err
}

// Get returns the entry for fp, or nil when none is stored.
func (s *Store) Get(ctx context.Context, fp rom.Fingerprint) (*Entry, error) {
	return s.GetByKey(ctx, fp.Key())
}

// GetByKey returns the entry stored under a fingerprint key, or nil.
func (s *Store) GetByKey(ctx context.Context, key string) (*Entry, error) {
	var document string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT document FROM entries WHERE fingerprint = ?`, key).Scan(&document)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	entry, err := decodeEntry([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", key, err)
	}
	return entry, nil
}

// Put stores the resolution for fp. Assets survive only when the record
// names the same game as before.
func (s *Store) Put(ctx context.Context, fp rom.Fingerprint, romPath string, record match.Record) (*Entry, error) {
	unlock := s.keys.Lock(fp.Key())
	defer unlock()

	existing, err := s.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Version:     EntryVersion,
		Fingerprint: fp,
		RomPath:     romPath,
		Record:      record,
	}
	if existing != nil && existing.Record.Resolved && record.Resolved && existing.Record.GameID == record.GameID {
		entry.Assets = existing.Assets
	}
	if err := s.write(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordAsset stores the outcome of one download. Callers record a complete
// asset only after the sink has published it.
func (s *Store) RecordAsset(ctx context.Context, fp rom.Fingerprint, ref media.AssetRef) error {
	unlock := s.keys.Lock(fp.Key())
	defer unlock()

	entry, err := s.Get(ctx, fp)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrNoEntry, fp.Key())
	}
	entry.Version = EntryVersion
	entry.setAsset(ref)
	return s.write(ctx, entry)
}

func (s *Store) write(ctx context.Context, entry *Entry) error {
	entry.UpdatedAt = s.now()
	document, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO entries (fingerprint, rom_path, document, updated_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(fingerprint) DO UPDATE SET
                 rom_path = excluded.rom_path,
                 document = excluded.document,
                 updated_at = excluded.updated_at`,
			entry.Key(),
			entry.RomPath,
			string(document),
			entry.UpdatedAt.Format(time.RFC3339Nano),
		)
		if execErr != nil {
			return fmt.Errorf("write entry: %w", execErr)
		}
		return nil
	})
}

// List returns every entry ordered by ROM path.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, document FROM entries ORDER BY rom_path, fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var key, document string
		if err := rows.Scan(&key, &document); err != nil {
			return nil, err
		}
		entry, err := decodeEntry([]byte(document))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", key, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes one entry by fingerprint key.
func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	unlock := s.keys.Lock(key)
	defer unlock()

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM entries WHERE fingerprint = ?`, key)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("remove entry: %w", err)
	}
	return affected > 0, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM entries`)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	return affected, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
