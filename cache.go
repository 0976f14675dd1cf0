package exprkit

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// parseCache memoizes source text to parsed, pre-binding trees. Trees in the
// cache are immutable and shared; every expression binds and folds a private
// clone. The cache is process-wide, starts empty, and lives for the process's
// duration unless cleared.
var parseCache sync.Map // cacheKey -> *node

// cacheKey identifies a parse by source hash and terminator set. The same
// text parsed with different terminators yields different trees.
type cacheKey struct {
	src  uint64
	stop string
}

func keyFor(src, stop string) cacheKey {
	return cacheKey{src: xxh3.HashString(src), stop: stop}
}

// parseCached parses src, consulting and populating the process-wide cache
// unless bypass is set.
func parseCached(src, stop string, bypass bool) (*node, error) {
	if bypass {
		return parseSource(src, stop)
	}
	key := keyFor(src, stop)
	if v, ok := parseCache.Load(key); ok {
		return v.(*node), nil
	}
	n, err := parseSource(src, stop)
	if err != nil {
		// Failed parses are not cached; the caller keeps the error and
		// malformed one-shot text should not occupy space.
		return nil, err
	}
	parseCache.Store(key, n)
	return n, nil
}

// ClearCache drops every cached parse.
func ClearCache() {
	parseCache.Range(func(k, _ any) bool {
		parseCache.Delete(k)
		return true
	})
}

// ClearCacheFor drops the cached parses of one source text, across all
// terminator sets it was parsed with.
func ClearCacheFor(src string) {
	h := xxh3.HashString(src)
	parseCache.Range(func(k, _ any) bool {
		if k.(cacheKey).src == h {
			parseCache.Delete(k)
		}
		return true
	})
}
