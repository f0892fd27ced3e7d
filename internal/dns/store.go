package dns

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"github.com/st3v3nmw/beacon-dns-lists/pkg/threadsafe"
)

const schema = `
CREATE TABLE IF NOT EXISTS validations (
	domain VARCHAR(255) PRIMARY KEY,
	verdict VARCHAR(10) NOT NULL,
	per_server TEXT NOT NULL,
	checked_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validations_expires_at ON validations (expires_at);
`

// Store persists validation results in sqlite. Writes are queued and
// flushed in batches by a background worker.
type Store struct {
	db       *sql.DB
	queue    chan *Result
	pending  threadsafe.Slice[*Result]
	interval time.Duration
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

// OpenStore opens the cache database at path. A file that is not a usable
// sqlite database is moved aside and a fresh one is created in its place.
func OpenStore(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		slog.Warn("Validation cache is unreadable, recreating it", "path", path, "error", err)

		corrupt := path + ".corrupt"
		if err := os.Rename(path, corrupt); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to move corrupt cache aside: %w", err)
		}

		db, err = openDB(path)
		if err != nil {
			return nil, err
		}
	}

	s := &Store{
		db:       db,
		queue:    make(chan *Result, 10_000),
		interval: 5 * time.Second,
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.worker()

	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// run migrations, this is also where a corrupt file first errors out
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Save queues r for the next flush. It never blocks.
func (s *Store) Save(r *Result) {
	select {
	case s.queue <- r:
	default:
		slog.Warn("Validation cache queue full - dropping result", "domain", r.Domain)
	}
}

func (s *Store) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case r := <-s.queue:
			s.pending.Append(r)
			if s.pending.Len() >= 1_000 {
				s.flush()
			}

		case <-ticker.C:
			if s.pending.Len() > 0 {
				s.flush()
			}

		case <-s.shutdown:
		drain:
			for {
				select {
				case r := <-s.queue:
					s.pending.Append(r)
				default:
					break drain
				}
			}

			if s.pending.Len() > 0 {
				s.flush()
			}
			return
		}
	}
}

func (s *Store) flush() {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("Failed to begin transaction", "error", err)
		return
	}

	stmt, err := tx.Prepare(`
		INSERT INTO validations (domain, verdict, per_server, checked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain) DO UPDATE SET
			verdict = excluded.verdict,
			per_server = excluded.per_server,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`)
	if err != nil {
		slog.Error("Failed to prepare statement", "error", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for r := range s.pending.All() {
		perServer, _ := json.Marshal(r.PerServer)
		_, err := stmt.Exec(
			r.Domain, string(r.Verdict), string(perServer),
			r.CheckedAt.UnixMilli(), r.ExpiresAt.UnixMilli(),
		)
		if err != nil {
			slog.Error("Failed to insert validation", "domain", r.Domain, "error", err)
			tx.Rollback()
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("Failed to commit transaction", "error", err)
		tx.Rollback()
		return
	}

	s.pending.Clear()
}

// LoadUnexpired returns every stored result still valid at now.
func (s *Store) LoadUnexpired(now time.Time) ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT domain, verdict, per_server, checked_at, expires_at
		FROM validations
		WHERE expires_at > ?
	`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var (
			r                    Result
			verdict, perServer   string
			checkedAt, expiresAt int64
		)
		if err := rows.Scan(&r.Domain, &verdict, &perServer, &checkedAt, &expiresAt); err != nil {
			return results, err
		}

		r.Verdict = types.Verdict(verdict)
		r.CheckedAt = time.UnixMilli(checkedAt)
		r.ExpiresAt = time.UnixMilli(expiresAt)
		if err := json.Unmarshal([]byte(perServer), &r.PerServer); err != nil {
			// the verdict is what matters, per-server detail is informational
			r.PerServer = nil
		}
		results = append(results, &r)
	}

	return results, rows.Err()
}

// DeleteExpired prunes rows that expired before now.
func (s *Store) DeleteExpired(now time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM validations WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired validations: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes queued results and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.shutdown)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
