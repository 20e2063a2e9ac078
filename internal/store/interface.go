package store

import "github.com/sfowler/pygmalion/internal/fact"

// Operations is the full set of store operations the scheduler's writer
// thread and the query surface depend on. Pinning it down as an
// interface lets the scheduler and query packages be tested against a
// fake without a real SQLite file.
type Operations interface {
	Close() error
	Path() string

	UpdateSourceFile(ci fact.CommandInfo) error
	GetCommandInfo(sourceFile string) (*fact.CommandInfo, error)
	GetSimilarCommandInfo(sourceFile string) (*fact.CommandInfo, error)
	GetIncluders(sourceFile string) ([]fact.CommandInfo, error)
	ListSourceFiles() ([]fact.CommandInfo, error)

	UpdateInclusion(inc fact.Inclusion) error
	GetDirectIncludes(includer string) ([]string, error)

	UpdateDefinition(def fact.DefInfo) error
	GetDefinition(usr string) (*fact.DefInfo, error)
	GetDefinitionsInFile(file string) ([]fact.DefInfo, error)

	UpdateOverride(o fact.Override) error
	UpdateCaller(c fact.CallEdge) error
	GetCallers(usr string) ([]fact.DefInfo, error)
	GetCallees(usr string) ([]fact.DefInfo, error)
	GetBases(usr string) ([]fact.DefInfo, error)
	GetOverriders(usr string) ([]fact.DefInfo, error)

	UpdateReference(ref fact.Reference) error
	GetReferences(usr string) ([]fact.SourceRange, error)
	GetReferenced(loc fact.Location) ([]fact.DefInfo, error)

	InsertFileAndCheck(path string) (isNew bool, err error)
	ResetMetadata(path string) error
}

var _ Operations = (*Store)(nil)
