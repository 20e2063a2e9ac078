package store

import (
	"database/sql"
	"fmt"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtInsertKindText        = "insertKindText"
	stmtUpsertDefinition      = "upsertDefinition"
	stmtGetDefinition         = "getDefinition"
	stmtGetDefinitionsInFile  = "getDefinitionsInFile"
)

func registerDefinitionStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtInsertKindText, `INSERT OR IGNORE INTO Kinds (Hash, Text) VALUES (?, ?)`},
		{stmtUpsertDefinition, `
			INSERT INTO Definitions (USRHash, Name, USR, FileHash, Line, Col, KindHash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(USRHash) DO UPDATE SET
				Name     = excluded.Name,
				FileHash = excluded.FileHash,
				Line     = excluded.Line,
				Col      = excluded.Col,
				KindHash = excluded.KindHash
		`},
		{stmtGetDefinition, `
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Definitions d
			JOIN Files f ON f.Hash = d.FileHash
			JOIN Kinds k ON k.Hash = d.KindHash
			WHERE d.USRHash = ?
		`},
		{stmtGetDefinitionsInFile, `
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Definitions d
			JOIN Files f ON f.Hash = d.FileHash
			JOIN Kinds k ON k.Hash = d.KindHash
			WHERE d.FileHash = ?
		`},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDefinition records or replaces the single definition site known
// for def.USR. A USR that already has a definition is overwritten
// wholesale, since a re-index always supersedes the prior site rather
// than merging with it (spec.md §3 invariant 2).
func (s *Store) UpdateDefinition(def fact.DefInfo) error {
	usrHash := hashid.Hash(def.USR)
	fileHash := hashid.Hash(def.Location.File)
	kindHash := hashid.Hash(def.Kind)

	return s.withTransaction(func(tx *sql.Tx) error {
		if _, err := s.txStmt(tx, stmtInsertFileText).Exec(fileHash, def.Location.File); err != nil {
			return fmt.Errorf("insert def file text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtInsertKindText).Exec(kindHash, def.Kind); err != nil {
			return fmt.Errorf("insert def kind text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtUpsertDefinition).Exec(
			usrHash, def.Name, def.USR, fileHash, def.Location.Line, def.Location.Col, kindHash,
		); err != nil {
			return fmt.Errorf("upsert definition: %w", err)
		}
		return nil
	})
}

// GetDefinition returns the definition site of usr, or nil if the store
// has never seen it defined.
func (s *Store) GetDefinition(usr string) (*fact.DefInfo, error) {
	var gotUSR, name, file, kind string
	var line, col int
	err := s.stmt(stmtGetDefinition).QueryRow(hashid.Hash(usr)).Scan(&gotUSR, &name, &file, &line, &col, &kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get definition: %w", err)
	}
	return &fact.DefInfo{
		USR:      gotUSR,
		Name:     name,
		Location: fact.Location{File: file, Line: line, Col: col},
		Kind:     kind,
	}, nil
}

// GetDefinitionsInFile lists every symbol defined in file, used by the
// tags exporter (internal/ctags).
func (s *Store) GetDefinitionsInFile(file string) ([]fact.DefInfo, error) {
	rows, err := s.stmt(stmtGetDefinitionsInFile).Query(hashid.Hash(file))
	if err != nil {
		return nil, fmt.Errorf("query definitions in file: %w", err)
	}
	defer rows.Close()

	defs, err := scanDefRows(rows)
	if err != nil {
		return nil, err
	}
	return toDefInfos(defs), nil
}

func toDefInfos(rows []defRow) []fact.DefInfo {
	out := make([]fact.DefInfo, len(rows))
	for i, r := range rows {
		out[i] = fact.DefInfo{
			USR:      r.USR,
			Name:     r.Name,
			Location: fact.Location{File: r.File, Line: r.Line, Col: r.Col},
			Kind:     r.Kind,
		}
	}
	return out
}
