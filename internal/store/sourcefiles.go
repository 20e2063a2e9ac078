package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtInsertFileText     = "insertFileText"
	stmtInsertPathText     = "insertPathText"
	stmtInsertCommandText  = "insertCommandText"
	stmtInsertArgText      = "insertArgText"
	stmtUpsertSourceFile   = "upsertSourceFile"
	stmtDeleteSourceArgs   = "deleteSourceFileArgs"
	stmtInsertSourceArg    = "insertSourceFileArg"
	stmtGetCommandInfo     = "getCommandInfo"
	stmtGetArgsForFile     = "getArgsForFile"
	stmtGetSimilarCommand  = "getSimilarCommandInfo"
	stmtIncluderAncestors  = "getIncluderAncestors"
	stmtListSourceFiles    = "listSourceFiles"
)

func registerSourceFileStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtInsertFileText, `INSERT OR IGNORE INTO Files (Hash, Text) VALUES (?, ?)`},
		{stmtInsertPathText, `INSERT OR IGNORE INTO Paths (Hash, Text) VALUES (?, ?)`},
		{stmtInsertCommandText, `INSERT OR IGNORE INTO BuildCommands (Hash, Text) VALUES (?, ?)`},
		{stmtInsertArgText, `INSERT OR IGNORE INTO BuildArgs (Hash, Text) VALUES (?, ?)`},
		{stmtUpsertSourceFile, `
			INSERT INTO SourceFiles (FileHash, WorkingDirHash, CommandHash, LastIndexed)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(FileHash) DO UPDATE SET
				WorkingDirHash = excluded.WorkingDirHash,
				CommandHash    = excluded.CommandHash,
				LastIndexed    = excluded.LastIndexed
		`},
		{stmtDeleteSourceArgs, `DELETE FROM SourceFileArgs WHERE FileHash = ?`},
		{stmtInsertSourceArg, `INSERT INTO SourceFileArgs (FileHash, Position, ArgHash) VALUES (?, ?, ?)`},
		{stmtGetCommandInfo, `
			SELECT f.Text, p.Text, c.Text, sf.LastIndexed
			FROM SourceFiles sf
			JOIN Files f ON f.Hash = sf.FileHash
			JOIN Paths p ON p.Hash = sf.WorkingDirHash
			JOIN BuildCommands c ON c.Hash = sf.CommandHash
			WHERE sf.FileHash = ?
		`},
		{stmtGetArgsForFile, `
			SELECT a.Text
			FROM SourceFileArgs sfa
			JOIN BuildArgs a ON a.Hash = sfa.ArgHash
			WHERE sfa.FileHash = ?
			ORDER BY sfa.Position
		`},
		{stmtGetSimilarCommand, `
			SELECT f.Hash
			FROM Files f
			JOIN SourceFiles sf ON sf.FileHash = f.Hash
			WHERE f.Text LIKE ? ESCAPE '\'
			ORDER BY f.Hash
			LIMIT 1
		`},
		{stmtIncluderAncestors, `
			WITH RECURSIVE Ancestors(Hash) AS (
				SELECT IncluderHash FROM Inclusions WHERE IncludedHash = ?
				UNION
				SELECT i.IncluderHash FROM Inclusions i JOIN Ancestors a ON i.IncludedHash = a.Hash
			)
			SELECT DISTINCT anc.Hash
			FROM Ancestors anc
			JOIN SourceFiles sf ON sf.FileHash = anc.Hash
		`},
		{stmtListSourceFiles, `SELECT FileHash FROM SourceFiles ORDER BY FileHash`},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSourceFile inserts the path, working dir, command text, and
// argument vector into their dictionary tables, then upserts the
// SourceFiles row. The whole operation is one transaction (spec.md §5:
// "updateSourceFile is atomic across the five dictionary/fact inserts it
// performs").
func (s *Store) UpdateSourceFile(ci fact.CommandInfo) error {
	fileHash := hashid.Hash(ci.SourceFile)
	dirHash := hashid.Hash(ci.WorkingDir)
	cmdHash := hashid.Hash(ci.Command)

	return s.withTransaction(func(tx *sql.Tx) error {
		if _, err := s.txStmt(tx, stmtInsertFileText).Exec(fileHash, ci.SourceFile); err != nil {
			return fmt.Errorf("insert file text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtInsertPathText).Exec(dirHash, ci.WorkingDir); err != nil {
			return fmt.Errorf("insert working dir text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtInsertCommandText).Exec(cmdHash, ci.Command); err != nil {
			return fmt.Errorf("insert command text: %w", err)
		}
		if _, err := s.txStmt(tx, stmtUpsertSourceFile).Exec(fileHash, dirHash, cmdHash, ci.LastIndexed); err != nil {
			return fmt.Errorf("upsert source file: %w", err)
		}
		if _, err := s.txStmt(tx, stmtDeleteSourceArgs).Exec(fileHash); err != nil {
			return fmt.Errorf("clear source file args: %w", err)
		}
		argStmt := s.txStmt(tx, stmtInsertArgText)
		linkStmt := s.txStmt(tx, stmtInsertSourceArg)
		for i, arg := range ci.Args {
			argHash := hashid.Hash(arg)
			if _, err := argStmt.Exec(argHash, arg); err != nil {
				return fmt.Errorf("insert arg text: %w", err)
			}
			if _, err := linkStmt.Exec(fileHash, i, argHash); err != nil {
				return fmt.Errorf("link source file arg: %w", err)
			}
		}
		return nil
	})
}

// GetCommandInfo performs the exact-file lookup. Read-only, safe outside
// a transaction.
func (s *Store) GetCommandInfo(sourceFile string) (*fact.CommandInfo, error) {
	return s.commandInfoForHash(hashid.Hash(sourceFile))
}

// GetSimilarCommandInfo returns any command info whose file lives under
// sf's normalized directory (in it or in any subdirectory of it), with
// SourceFile rewritten to sf. This
// is the documented "arbitrary match" fallback used for headers and
// newly-seen TUs (spec.md §4.4).
func (s *Store) GetSimilarCommandInfo(sf string) (*fact.CommandInfo, error) {
	dir := normalizeDir(filepath.Dir(sf))
	pattern := escapeLike(dir) + string(filepath.Separator) + "%"

	var candidateHash int64
	err := s.stmt(stmtGetSimilarCommand).QueryRow(pattern).Scan(&candidateHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("similar command lookup: %w", err)
	}

	ci, err := s.commandInfoForHash(candidateHash)
	if err != nil || ci == nil {
		return nil, err
	}
	ci.SourceFile = sf
	return ci, nil
}

// GetIncluders returns the command info of every translation unit that
// transitively includes sf.
func (s *Store) GetIncluders(sf string) ([]fact.CommandInfo, error) {
	fileHash := hashid.Hash(sf)
	rows, err := s.stmt(stmtIncluderAncestors).Query(fileHash)
	if err != nil {
		return nil, fmt.Errorf("query includers: %w", err)
	}
	defer rows.Close()

	var hashes []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []fact.CommandInfo
	for _, h := range hashes {
		ci, err := s.commandInfoForHash(h)
		if err != nil {
			return nil, err
		}
		if ci != nil {
			out = append(out, *ci)
		}
	}
	return out, nil
}

// commandInfoForHash performs the exact lookup (including args) for an
// already-hashed source file, without rewriting its SourceFile field.
func (s *Store) commandInfoForHash(fileHash int64) (*fact.CommandInfo, error) {
	var path, workingDir, command string
	var lastIndexed int64
	err := s.stmt(stmtGetCommandInfo).QueryRow(fileHash).Scan(&path, &workingDir, &command, &lastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get command info: %w", err)
	}

	args, err := s.argsForFile(fileHash)
	if err != nil {
		return nil, err
	}

	return &fact.CommandInfo{
		SourceFile:  path,
		WorkingDir:  workingDir,
		Command:     command,
		Args:        args,
		LastIndexed: lastIndexed,
	}, nil
}

// ListSourceFiles returns the command info of every indexed translation
// unit, ordered by file hash. Used by the compile_commands.json exporter.
func (s *Store) ListSourceFiles() ([]fact.CommandInfo, error) {
	rows, err := s.stmt(stmtListSourceFiles).Query()
	if err != nil {
		return nil, fmt.Errorf("list source files: %w", err)
	}
	var hashes []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]fact.CommandInfo, 0, len(hashes))
	for _, h := range hashes {
		ci, err := s.commandInfoForHash(h)
		if err != nil {
			return nil, err
		}
		if ci != nil {
			out = append(out, *ci)
		}
	}
	return out, nil
}

func (s *Store) argsForFile(fileHash int64) ([]string, error) {
	rows, err := s.stmt(stmtGetArgsForFile).Query(fileHash)
	if err != nil {
		return nil, fmt.Errorf("query args: %w", err)
	}
	defer rows.Close()

	var args []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, rows.Err()
}

// normalizeDir cleans a directory path (filepath.Clean) for prefix
// comparison. A relative path stays relative and no tilde expansion is
// done, so the result is deterministic and independent of the working
// directory of the process performing the lookup.
func normalizeDir(dir string) string {
	return filepath.Clean(dir)
}

// escapeLike escapes SQLite LIKE metacharacters so a literal directory
// component never accidentally behaves as a wildcard.
func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
