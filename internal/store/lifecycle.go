package store

import (
	"database/sql"
	"fmt"

	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtDeleteInclusionsFrom = "deleteInclusionsFrom"
	stmtDeleteRefsInFile     = "deleteRefsInFile"
	stmtDeleteDefsInFile     = "deleteDefsInFile"
)

func registerLifecycleStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtDeleteInclusionsFrom, `DELETE FROM Inclusions WHERE IncluderHash = ?`},
		{stmtDeleteRefsInFile, `DELETE FROM Refs WHERE FileHash = ?`},
		{stmtDeleteDefsInFile, `DELETE FROM Definitions WHERE FileHash = ?`},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// InsertFileAndCheck inserts path into the Files dictionary and reports
// whether this was the first time the store saw it. A single INSERT OR
// IGNORE is already atomic on this connection's single writer, so no
// explicit transaction is needed around the existence check.
func (s *Store) InsertFileAndCheck(path string) (bool, error) {
	res, err := s.stmt(stmtInsertFileText).Exec(hashid.Hash(path), path)
	if err != nil {
		return false, fmt.Errorf("insert file and check: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert file and check: rows affected: %w", err)
	}
	return n > 0, nil
}

// ResetMetadata clears every fact this store attributes to sf's own
// content -- the includes it declares, the references it contains, and
// the definitions it provides -- so a re-index can replay sf's facts
// from scratch without leaving stale rows behind. Call-edges and
// overrides are deliberately left untouched: they are never cleaned up
// (spec-level known limitation), so stale edges to a since-deleted
// function persist until its USR is redefined.
func (s *Store) ResetMetadata(sf string) error {
	fileHash := hashid.Hash(sf)
	return s.withTransaction(func(tx *sql.Tx) error {
		if _, err := s.txStmt(tx, stmtDeleteInclusionsFrom).Exec(fileHash); err != nil {
			return fmt.Errorf("delete inclusions: %w", err)
		}
		if _, err := s.txStmt(tx, stmtDeleteRefsInFile).Exec(fileHash); err != nil {
			return fmt.Errorf("delete refs: %w", err)
		}
		if _, err := s.txStmt(tx, stmtDeleteDefsInFile).Exec(fileHash); err != nil {
			return fmt.Errorf("delete definitions: %w", err)
		}
		return nil
	})
}
