// Package orderstore serves externally authored batch orders: for a custom
// batch name, the ordered list of test identifiers that defines it. Orders
// live in per-batch text files by default; setting ORDER_PG_DSN switches the
// store to a Postgres table with the same shape.
package orderstore

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sayhar/wiki-know/internal/safeio"
)

// ErrNoOrder indicates no order is defined for the requested batch name.
var ErrNoOrder = errors.New("orderstore: no such order")

// Store loads batch orders from files or Postgres.
type Store struct {
	fs  *safeio.FS
	dir string // order-file directory relative to fs

	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, []string]
}

// New returns a file-backed store reading <dir>/<batch>.txt under fsys.
func New(fsys *safeio.FS, dir string) *Store {
	if dir == "" {
		dir = "order"
	}
	return &Store{fs: fsys, dir: dir}
}

// NewPostgres returns a Postgres-backed store.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, []string](128)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// NewFromEnv selects the backend: Postgres when ORDER_PG_DSN is set and
// reachable, files otherwise.
func NewFromEnv(fsys *safeio.FS, dir string) *Store {
	dsn := strings.TrimSpace(os.Getenv("ORDER_PG_DSN"))
	if dsn == "" {
		return New(fsys, dir)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(fsys, dir)
	}
	return s
}

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS batch_orders (
  batch TEXT NOT NULL,
  position INTEGER NOT NULL,
  test_id TEXT NOT NULL,
  PRIMARY KEY (batch, position)
);
CREATE INDEX IF NOT EXISTS idx_batch_orders_batch ON batch_orders (batch);
`)
	})
	return s.schemaErr
}

// Load returns the ordered identifiers for a batch name, or ErrNoOrder when
// none is defined.
func (s *Store) Load(batch string) ([]string, error) {
	if s == nil {
		return nil, ErrNoOrder
	}
	batch = strings.TrimSpace(batch)
	if batch == "" {
		return nil, ErrNoOrder
	}
	if s.db != nil {
		return s.loadDB(batch)
	}
	return s.loadFile(batch)
}

func (s *Store) loadFile(batch string) ([]string, error) {
	f, err := s.fs.Open(filepath.Join(s.dir, batch+".txt"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoOrder, batch)
		}
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read order %s: %w", batch, err)
	}
	return ids, nil
}

func (s *Store) loadDB(batch string) ([]string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(batch); ok {
			return cached, nil
		}
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT test_id FROM batch_orders WHERE batch = $1 ORDER BY position`, batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOrder, batch)
	}

	if s.cache != nil {
		s.cache.Add(batch, ids)
	}
	return ids, nil
}

// Close releases the database handle, if any.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
