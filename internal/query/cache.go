package query

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sfowler/pygmalion/internal/fact"
)

// entry stamps a cached value with the scheduler generation in effect
// when it was fetched. A cached value is stale, and treated as a miss,
// once the scheduler has completed any write since.
type entry[T any] struct {
	value      T
	generation uint64
}

// cache holds one LRU per query shape. A single map keyed by a
// composite string would also work, but per-shape typed caches avoid
// the interface{} boxing and keep each Get a single map lookup.
type cache struct {
	defs     *lru.Cache[string, entry[*fact.DefInfo]]
	defLists *lru.Cache[string, entry[[]fact.DefInfo]]
}

func newCache(size int) *cache {
	defs, err := lru.New[string, entry[*fact.DefInfo]](size)
	if err != nil {
		panic(err) // only fails for size <= 0, which New already normalizes
	}
	defLists, err := lru.New[string, entry[[]fact.DefInfo]](size)
	if err != nil {
		panic(err)
	}
	return &cache{defs: defs, defLists: defLists}
}

func (c *cache) getDef(usr string, generation uint64) (*fact.DefInfo, bool) {
	e, ok := c.defs.Get(usr)
	if !ok || e.generation != generation {
		return nil, false
	}
	return e.value, true
}

func (c *cache) putDef(usr string, def *fact.DefInfo, generation uint64) {
	c.defs.Add(usr, entry[*fact.DefInfo]{value: def, generation: generation})
}

func (c *cache) getDefList(kind, usr string, generation uint64) ([]fact.DefInfo, bool) {
	e, ok := c.defLists.Get(kind + "\x00" + usr)
	if !ok || e.generation != generation {
		return nil, false
	}
	return e.value, true
}

func (c *cache) putDefList(kind, usr string, defs []fact.DefInfo, generation uint64) {
	c.defLists.Add(kind+"\x00"+usr, entry[[]fact.DefInfo]{value: defs, generation: generation})
}
