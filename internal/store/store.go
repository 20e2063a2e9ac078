// Package store implements the embedded relational fact database: schema
// definition, prepared-statement cache, transaction scope, and the
// upsert/query primitives over the fact model (spec.md §4.2, §4.4).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite connection and every prepared statement the
// hot paths use. Only one goroutine -- the request scheduler's writer
// thread (internal/scheduler) -- is meant to hold a Store.
type Store struct {
	conn  *sql.DB
	path  string
	stmts map[string]*sql.Stmt
	// order records insertion order so Close finalizes statements in
	// reverse, matching the teacher's "opened forward, closed backward"
	// resource discipline.
	order []string
}

// Config configures Open.
type Config struct {
	Path string // database file path, e.g. "<projectroot>/.pygmalion.sqlite"
}

// Open opens or creates the store at cfg.Path, applying the tuning
// pragmas and validating (or initializing) the schema version.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path cannot be empty")
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	_, statErr := os.Stat(cfg.Path)
	dbExists := statErr == nil

	dsn := fmt.Sprintf("file:%s?_foreign_keys=off", cfg.Path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Single writer thread only ever touches this handle; a single
	// connection avoids any pool-level contention on the exclusive lock.
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn:  conn,
		path:  cfg.Path,
		stmts: make(map[string]*sql.Stmt),
	}

	if err := s.initSchema(dbExists); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema(dbExists bool) error {
	pragmas := []string{pragmaJournalWAL, pragmaSynchronous, pragmaLockingExclusive}
	if !dbExists {
		// Page size can only be set before any table exists.
		pragmas = append([]string{pragmaPageSize}, pragmas...)
	}
	pragmas = append(pragmas, pragmaCacheSize)
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	if !dbExists {
		for k, v := range map[string]string{
			metaKeyTool:        ToolName,
			metaKeySchemaMajor: SchemaMajor,
			metaKeySchemaMinor: SchemaMinor,
		} {
			if _, err := tx.Exec(`INSERT INTO Metadata (Key, Value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("insert metadata %s: %w", k, err)
			}
		}
	} else {
		if err := checkVersion(tx); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func checkVersion(q interface {
	QueryRow(query string, args ...any) *sql.Row
}) error {
	var tool, major, minor string
	if err := q.QueryRow(`SELECT Value FROM Metadata WHERE Key = ?`, metaKeyTool).Scan(&tool); err != nil {
		return fmt.Errorf("read tool metadata: %w", err)
	}
	if err := q.QueryRow(`SELECT Value FROM Metadata WHERE Key = ?`, metaKeySchemaMajor).Scan(&major); err != nil {
		return fmt.Errorf("read schema_major metadata: %w", err)
	}
	if err := q.QueryRow(`SELECT Value FROM Metadata WHERE Key = ?`, metaKeySchemaMinor).Scan(&minor); err != nil {
		return fmt.Errorf("read schema_minor metadata: %w", err)
	}
	if tool != ToolName || major != SchemaMajor || minor != SchemaMinor {
		return fmt.Errorf("schema version mismatch: store has %s (%s.%s), binary wants %s (%s.%s)",
			tool, major, minor, ToolName, SchemaMajor, SchemaMinor)
	}
	return nil
}

// withTransaction runs fn between an explicit BEGIN/COMMIT, rolling back
// on any error or panic so the transaction ends on every exit path.
func (s *Store) withTransaction(fn func(*sql.Tx) error) (err error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// prepare registers a named prepared statement, owned by the store and
// finalized (in reverse registration order) on Close.
func (s *Store) prepare(name, query string) error {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", name, err)
	}
	s.stmts[name] = stmt
	s.order = append(s.order, name)
	return nil
}

func (s *Store) stmt(name string) *sql.Stmt {
	st, ok := s.stmts[name]
	if !ok {
		panic("store: unknown prepared statement " + name)
	}
	return st
}

// Close finalizes every prepared statement (reverse order) and closes
// the underlying connection.
func (s *Store) Close() error {
	for i := len(s.order) - 1; i >= 0; i-- {
		if st, ok := s.stmts[s.order[i]]; ok {
			st.Close()
		}
	}
	s.stmts = nil
	s.order = nil
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// prepareStatements materializes every hot-path prepared statement.
// Called once from Open; Close finalizes them in reverse order.
func (s *Store) prepareStatements() error {
	registrars := []func(*Store) error{
		registerSourceFileStatements,
		registerInclusionStatements,
		registerDefinitionStatements,
		registerEdgeStatements,
		registerRefStatements,
		registerLifecycleStatements,
	}
	for _, reg := range registrars {
		if err := reg(s); err != nil {
			return err
		}
	}
	return nil
}

// txStmt binds a store-owned prepared statement to tx, reusing its
// query plan for the duration of the transaction.
func (s *Store) txStmt(tx *sql.Tx, name string) *sql.Stmt {
	return tx.Stmt(s.stmt(name))
}

// insertOrIgnoreText inserts the dictionary row (h, text) into table
// (Hash, Text) unless a row with that hash exists, and returns any error.
func insertOrIgnoreText(tx *sql.Tx, table, text string, h int64) error {
	q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (Hash, Text) VALUES (?, ?)`, table)
	_, err := tx.Exec(q, h, text)
	if err != nil {
		return fmt.Errorf("insert-or-ignore into %s: %w", table, err)
	}
	return nil
}
