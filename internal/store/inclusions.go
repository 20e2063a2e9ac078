package store

import (
	"database/sql"
	"fmt"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtUpsertInclusion    = "upsertInclusion"
	stmtGetDirectIncludes  = "getDirectIncludes"
)

func registerInclusionStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtUpsertInclusion, `
			INSERT INTO Inclusions (IncluderHash, IncludedHash, Direct)
			VALUES (?, ?, ?)
			ON CONFLICT(IncluderHash, IncludedHash) DO UPDATE SET
				Direct = MAX(Direct, excluded.Direct)
		`},
		{stmtGetDirectIncludes, `
			SELECT f.Text
			FROM Inclusions i
			JOIN Files f ON f.Hash = i.IncludedHash
			WHERE i.IncluderHash = ? AND i.Direct = 1
		`},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// UpdateInclusion records that inc.Includer includes inc.Included,
// upgrading a previously-indirect edge to direct if a direct #include is
// now observed. An edge already marked direct is never downgraded, since
// a later indirect reference to the same pair does not undo a direct one.
func (s *Store) UpdateInclusion(inc fact.Inclusion) error {
	includerHash := hashid.Hash(inc.Includer)
	includedHash := hashid.Hash(inc.Included)
	direct := 0
	if inc.Direct {
		direct = 1
	}

	return s.withTransaction(func(tx *sql.Tx) error {
		if _, err := s.txStmt(tx, stmtInsertFileText).Exec(includerHash, inc.Includer); err != nil {
			return fmt.Errorf("insert includer text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtInsertFileText).Exec(includedHash, inc.Included); err != nil {
			return fmt.Errorf("insert included text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtUpsertInclusion).Exec(includerHash, includedHash, direct); err != nil {
			return fmt.Errorf("upsert inclusion: %w", err)
		}
		return nil
	})
}

// GetDirectIncludes returns the set of files directly #included by
// includer.
func (s *Store) GetDirectIncludes(includer string) ([]string, error) {
	rows, err := s.stmt(stmtGetDirectIncludes).Query(hashid.Hash(includer))
	if err != nil {
		return nil, fmt.Errorf("query direct includes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
