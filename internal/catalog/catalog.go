// Package catalog stores document modules in SQLite.
//
// A Catalog is a module.Source: registries load serialization documents
// and JSON or YAML modules from it on demand. It also keeps a table of
// module redirects that can be applied to a registry.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/objgraph/internal/module"
)

//go:embed schema.sql
var schemaSQL string

// Extensions lists the file extensions Import picks up.
var Extensions = []string{".json", ".mjson", ".meta", ".yaml", ".yml"}

// Catalog is a SQLite-backed module store.
type Catalog struct {
	db *sql.DB
}

// Entry describes a stored module.
type Entry struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
	Hash string `json:"hash"`
}

// Open creates or opens a catalog database at path. ":memory:" opens a
// private in-memory catalog.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory
	// database lives on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores a module body, replacing any previous body for id.
func (c *Catalog) Put(ctx context.Context, id string, body []byte) error {
	return put(ctx, c.db, id, body)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, db execer, id string, body []byte) error {
	sum := sha256.Sum256(body)
	_, err := db.ExecContext(ctx, `
		INSERT INTO modules (id, body, hash)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, hash = excluded.hash
	`, id, body, hex.EncodeToString(sum[:]))
	if err != nil {
		return fmt.Errorf("put module %q: %w", id, err)
	}
	return nil
}

// PutRedirect records that id is an alias of target.
func (c *Catalog) PutRedirect(ctx context.Context, id, target string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO redirects (id, target)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET target = excluded.target
	`, id, target)
	if err != nil {
		return fmt.Errorf("put redirect %q: %w", id, err)
	}
	return nil
}

// Load implements module.Source. Ids without an extension are tried as-is
// and then with ".json" appended, like module.DirSource.
func (c *Catalog) Load(ctx context.Context, id string) ([]byte, error) {
	candidates := []string{id}
	if path.Ext(id) == "" {
		candidates = append(candidates, id+".json")
	}

	for _, cand := range candidates {
		var body []byte
		err := c.db.QueryRowContext(ctx, `SELECT body FROM modules WHERE id = ?`, cand).Scan(&body)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load module %q: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %q in catalog", module.ErrNotFound, id)
}

// Redirects returns every stored redirect keyed by module id.
func (c *Catalog) Redirects(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, target FROM redirects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query redirects: %w", err)
	}
	defer rows.Close()

	redirects := make(map[string]string)
	for rows.Next() {
		var id, target string
		if err := rows.Scan(&id, &target); err != nil {
			return nil, fmt.Errorf("scan redirect: %w", err)
		}
		redirects[id] = target
	}
	return redirects, rows.Err()
}

// List returns the stored modules ordered by id.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, length(body), hash FROM modules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Size, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Import stores every module file under dir, keyed by its slash-separated
// path relative to dir. All files are written in one transaction; the
// number of imported modules is returned.
func (c *Catalog) Import(ctx context.Context, dir string) (int, error) {
	type file struct {
		id   string
		body []byte
	}
	var files []file

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasModuleExt(p) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, file{id: filepath.ToSlash(rel), body: body})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", dir, err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, f := range files {
		if err := put(ctx, tx, f.id, f.body); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(files), nil
}

// ApplyRedirects defines the stored redirects on reg.
func (c *Catalog) ApplyRedirects(ctx context.Context, reg *module.Registry) error {
	redirects, err := c.Redirects(ctx)
	if err != nil {
		return err
	}
	for id, target := range redirects {
		reg.DefineRedirect(id, target)
	}
	return nil
}

func hasModuleExt(p string) bool {
	ext := filepath.Ext(p)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
