package store

import (
	"database/sql"
	"fmt"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtUpsertRef       = "upsertRef"
	stmtGetReferences   = "getReferences"
	stmtGetReferenced   = "getReferenced"
)

// referencedPredicate is the range-containment test used by
// getReferenced. A naive three-way OR (interior-line / start-boundary /
// end-boundary) is wrong for a single-line range: with Line == EndLine,
// satisfying either the start or the end column bound alone would wrongly
// admit columns outside [Col, EndCol]. The single-line case is therefore
// its own branch requiring both bounds; the two boundary branches only
// fire when Line != EndLine.
const referencedPredicate = `
	r.FileHash = ? AND (
		(? > r.Line AND ? < r.EndLine)
		OR (r.Line = r.EndLine AND ? = r.Line AND ? >= r.Col AND ? <= r.EndCol)
		OR (r.Line <> r.EndLine AND ? = r.Line AND ? >= r.Col)
		OR (r.Line <> r.EndLine AND ? = r.EndLine AND ? <= r.EndCol)
	)
`

func registerRefStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtUpsertRef, `
			INSERT OR IGNORE INTO Refs (FileHash, Line, Col, EndLine, EndCol, RefUSRHash)
			VALUES (?, ?, ?, ?, ?, ?)
		`},
		{stmtGetReferences, `
			SELECT f.Text, r.Line, r.Col, r.EndLine, r.EndCol
			FROM Refs r
			JOIN Definitions d ON d.USRHash = r.RefUSRHash
			JOIN Files f ON f.Hash = r.FileHash
			WHERE r.RefUSRHash = ?
		`},
		{stmtGetReferenced, fmt.Sprintf(`
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Refs r
			JOIN Definitions d ON d.USRHash = r.RefUSRHash
			JOIN Files f ON f.Hash = d.FileHash
			JOIN Kinds k ON k.Hash = d.KindHash
			WHERE %s
		`, referencedPredicate)},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReference records that ref.Range refers to ref.TargetUSR. A
// duplicate range/target pair is a no-op (the UNIQUE constraint on Refs
// backs the OR IGNORE).
func (s *Store) UpdateReference(ref fact.Reference) error {
	fileHash := hashid.Hash(ref.Range.File)
	usrHash := hashid.Hash(ref.TargetUSR)

	return s.withTransaction(func(tx *sql.Tx) error {
		if _, err := s.txStmt(tx, stmtInsertFileText).Exec(fileHash, ref.Range.File); err != nil {
			return fmt.Errorf("insert ref file text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtUpsertRef).Exec(
			fileHash, ref.Range.Line, ref.Range.Col, ref.Range.EndLine, ref.Range.EndCol, usrHash,
		); err != nil {
			return fmt.Errorf("upsert ref: %w", err)
		}
		return nil
	})
}

// GetReferences returns every source range known to reference usr,
// restricted to targets with a known definition.
func (s *Store) GetReferences(usr string) ([]fact.SourceRange, error) {
	rows, err := s.stmt(stmtGetReferences).Query(hashid.Hash(usr))
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []fact.SourceRange
	for rows.Next() {
		var r fact.SourceRange
		if err := rows.Scan(&r.File, &r.Line, &r.Col, &r.EndLine, &r.EndCol); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetReferenced performs the range-containment lookup: every definition
// whose Refs row covers loc. Boundary columns are inclusive on both
// ends, and a degenerate single-line range (Line == EndLine) is handled
// entirely by the predicate's single-line disjunct.
func (s *Store) GetReferenced(loc fact.Location) ([]fact.DefInfo, error) {
	fileHash := hashid.Hash(loc.File)
	rows, err := s.stmt(stmtGetReferenced).Query(
		fileHash,
		loc.Line, loc.Line,
		loc.Line, loc.Col, loc.Col,
		loc.Line, loc.Col,
		loc.Line, loc.Col,
	)
	if err != nil {
		return nil, fmt.Errorf("query referenced: %w", err)
	}
	defer rows.Close()

	defs, err := scanDefRows(rows)
	if err != nil {
		return nil, err
	}
	return toDefInfos(defs), nil
}
