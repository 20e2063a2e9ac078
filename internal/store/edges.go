package store

import (
	"fmt"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/hashid"
)

const (
	stmtInsertOverride = "insertOverride"
	stmtInsertCaller   = "insertCaller"
	stmtGetCallers     = "getCallers"
	stmtGetCallees     = "getCallees"
	stmtGetBases       = "getBases"
	stmtGetOverriders  = "getOverriders"
)

const defJoin = `
	JOIN Definitions d ON d.USRHash = %s
	JOIN Files f ON f.Hash = d.FileHash
	JOIN Kinds k ON k.Hash = d.KindHash
`

func registerEdgeStatements(s *Store) error {
	stmts := []struct{ name, query string }{
		{stmtInsertOverride, `INSERT OR IGNORE INTO Overrides (DefiningUSRHash, OverriddenUSRHash) VALUES (?, ?)`},
		{stmtInsertCaller, `INSERT OR IGNORE INTO Callers (CallerUSRHash, CalleeUSRHash) VALUES (?, ?)`},
		{stmtGetCallers, fmt.Sprintf(`
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Callers c %s
			WHERE c.CalleeUSRHash = ?
		`, fmt.Sprintf(defJoin, "c.CallerUSRHash"))},
		{stmtGetCallees, fmt.Sprintf(`
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Callers c %s
			WHERE c.CallerUSRHash = ?
		`, fmt.Sprintf(defJoin, "c.CalleeUSRHash"))},
		{stmtGetBases, fmt.Sprintf(`
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Overrides o %s
			WHERE o.DefiningUSRHash = ?
		`, fmt.Sprintf(defJoin, "o.OverriddenUSRHash"))},
		{stmtGetOverriders, fmt.Sprintf(`
			SELECT d.USR, d.Name, f.Text, d.Line, d.Col, k.Text
			FROM Overrides o %s
			WHERE o.OverriddenUSRHash = ?
		`, fmt.Sprintf(defJoin, "o.DefiningUSRHash"))},
	}
	for _, st := range stmts {
		if err := s.prepare(st.name, st.query); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOverride records that o.DefiningUSR overrides o.OverriddenUSR.
func (s *Store) UpdateOverride(o fact.Override) error {
	_, err := s.stmt(stmtInsertOverride).Exec(hashid.Hash(o.DefiningUSR), hashid.Hash(o.OverriddenUSR))
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

// UpdateCaller records that c.CallerUSR calls c.CalleeUSR.
func (s *Store) UpdateCaller(c fact.CallEdge) error {
	_, err := s.stmt(stmtInsertCaller).Exec(hashid.Hash(c.CallerUSR), hashid.Hash(c.CalleeUSR))
	if err != nil {
		return fmt.Errorf("insert caller: %w", err)
	}
	return nil
}

// GetCallers returns every known-defined symbol that calls usr.
func (s *Store) GetCallers(usr string) ([]fact.DefInfo, error) {
	return s.queryDefEdge(stmtGetCallers, usr)
}

// GetCallees returns every known-defined symbol usr calls.
func (s *Store) GetCallees(usr string) ([]fact.DefInfo, error) {
	return s.queryDefEdge(stmtGetCallees, usr)
}

// GetBases returns the symbols usr overrides.
func (s *Store) GetBases(usr string) ([]fact.DefInfo, error) {
	return s.queryDefEdge(stmtGetBases, usr)
}

// GetOverriders returns the symbols that override usr.
func (s *Store) GetOverriders(usr string) ([]fact.DefInfo, error) {
	return s.queryDefEdge(stmtGetOverriders, usr)
}

func (s *Store) queryDefEdge(stmtName, usr string) ([]fact.DefInfo, error) {
	rows, err := s.stmt(stmtName).Query(hashid.Hash(usr))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", stmtName, err)
	}
	defer rows.Close()

	defs, err := scanDefRows(rows)
	if err != nil {
		return nil, err
	}
	return toDefInfos(defs), nil
}
