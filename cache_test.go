package exprkit

import (
	"reflect"
	"strconv"
	"sync"
	"testing"
)

func cacheLen() int {
	n := 0
	parseCache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestCachePopulates(t *testing.T) {
	ClearCache()
	New("1 + cachetest")
	if _, ok := parseCache.Load(keyFor("1 + cachetest", "")); !ok {
		t.Error("parse did not populate the cache")
	}
	ClearCache()
}

func TestCacheBypass(t *testing.T) {
	ClearCache()
	New("1 + bypasstest", NoCache())
	if n := cacheLen(); n != 0 {
		t.Errorf("NoCache populated the cache: %d entries", n)
	}
}

func TestCacheSkipsFailedParse(t *testing.T) {
	ClearCache()
	New("(1 + malformed")
	if n := cacheLen(); n != 0 {
		t.Errorf("failed parse occupies the cache: %d entries", n)
	}
}

func TestCacheKeyIncludesStop(t *testing.T) {
	ClearCache()
	New("1 + 2, 3")
	New("1 + 2, 3", StopOn(','))
	if n := cacheLen(); n != 2 {
		t.Errorf("distinct terminator sets share %d cache entries, want 2", n)
	}
	ClearCache()
}

func TestClearCacheFor(t *testing.T) {
	ClearCache()
	New("clearme + 1")
	New("clearme + 1", StopOn(','))
	New("keepme + 1")
	ClearCacheFor("clearme + 1")
	if _, ok := parseCache.Load(keyFor("clearme + 1", "")); ok {
		t.Error("ClearCacheFor left the default-terminator entry")
	}
	if _, ok := parseCache.Load(keyFor("clearme + 1", ",")); ok {
		t.Error("ClearCacheFor left the custom-terminator entry")
	}
	if _, ok := parseCache.Load(keyFor("keepme + 1", "")); !ok {
		t.Error("ClearCacheFor removed an unrelated entry")
	}
	ClearCache()
}

// TestParseDeterminism parses the same text with the cache bypassed and
// checks the trees are structurally identical.
func TestParseDeterminism(t *testing.T) {
	srcs := []string{
		"5 + 6 * 4",
		"a ? b : c ? d : e",
		"max(min(1, 2), a[i + 1])",
		"2% + -3km",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			a, err := parseSource(src, "")
			if err != nil {
				t.Fatal(err)
			}
			b, err := parseSource(src, "")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(a, b) {
				t.Errorf("nondeterministic parse of %q:\n%v\n%v", src, a, b)
			}
		})
	}
}

// TestCacheSharedTreeImmutable checks that binding and folding one expression
// does not disturb the cached tree another expression clones.
func TestCacheSharedTreeImmutable(t *testing.T) {
	ClearCache()
	src := "x + 1"
	a := New(src, Constants(map[string]float64{"x": 2}))
	if got := a.String(); got != "3" {
		t.Fatalf("constant-folded rendering = %q, want \"3\"", got)
	}
	b := New(src)
	if got := b.String(); got != "x + 1" {
		t.Errorf("cached tree was mutated: second parse renders %q", got)
	}
	ClearCache()
}

// TestConcurrentParseEvaluate hammers the cache and a shared expression from
// many goroutines.
func TestConcurrentParseEvaluate(t *testing.T) {
	ClearCache()
	shared := New("5 + 6 * 4")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v, err := shared.Evaluate()
				if err != nil || v != 29 {
					t.Errorf("shared evaluate = %v, %v", v, err)
					return
				}
				e := New("1 + " + strconv.Itoa(i%10))
				v, err = e.Evaluate()
				if err != nil || v != float64(1+i%10) {
					t.Errorf("evaluate = %v, %v", v, err)
					return
				}
				if i%25 == 0 {
					ClearCacheFor("1 + " + strconv.Itoa(g))
				}
			}
		}(g)
	}
	wg.Wait()
	ClearCache()
}
