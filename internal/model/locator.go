package model

import (
	"sort"

	"github.com/msbuild-community/msbuild-dev-tools/internal/logger"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

// locator answers position queries over the object set. It is built once
// per snapshot and read-only afterwards: entries sorted by (start, end)
// plus an exact-start dictionary as a fast path. Insertion order breaks
// ties between ranges with the same start, so the most specific (latest
// constructed) declaration wins, mirroring "deepest declaration wins".
type locator struct {
	entries []locatorEntry
	byStart map[int]Object
}

type locatorEntry struct {
	rng xml.Range
	obj Object
	seq int
}

func newLocator(objects []Object) *locator {
	l := &locator{byStart: make(map[int]Object, len(objects))}
	for i, obj := range objects {
		rng := obj.XMLRange()
		l.entries = append(l.entries, locatorEntry{rng: rng, obj: obj, seq: i})
		l.byStart[rng.Start] = obj // later insertions overwrite
	}
	sort.SliceStable(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if a.rng.Start != b.rng.Start {
			return a.rng.Start < b.rng.Start
		}
		if a.rng.End != b.rng.End {
			return a.rng.End < b.rng.End
		}
		return a.seq < b.seq
	})
	l.warnOverlaps()
	return l
}

// warnOverlaps flags overlapping but non-nested ranges. The evaluator is
// not supposed to produce them; when it does, lookup still works via the
// last-wins rule, so this is a data-integrity warning rather than an error.
func (l *locator) warnOverlaps() {
	for i := 1; i < len(l.entries); i++ {
		prev, cur := l.entries[i-1], l.entries[i]
		if cur.rng.Start > prev.rng.Start && cur.rng.Start < prev.rng.End && cur.rng.End > prev.rng.End {
			logger.Warnf("locator: overlapping object ranges [%d,%d) %q and [%d,%d) %q",
				prev.rng.Start, prev.rng.End, prev.obj.Name(),
				cur.rng.Start, cur.rng.End, cur.obj.Name())
		}
	}
}

// Locate returns the innermost object whose range contains the offset, or
// nil. Ranges are half-open; zero-length ranges are insertion points and
// never match.
func (l *locator) Locate(offset int) Object {
	if obj, ok := l.byStart[offset]; ok && obj.XMLRange().Contains(offset) {
		// An exact start hit can still be shadowed by a later-starting
		// nested range only if one starts exactly here too; the map keeps
		// the most specific of those, so this is final.
		return obj
	}

	// Entries are sorted by start: scan containing ranges backwards,
	// preferring the latest-starting one. Ranges sharing that start are
	// tie-broken by construction order, latest wins, the same rule the
	// byStart map applies. Earlier starts are strictly outer, so the scan
	// stops once it leaves the winning start group.
	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].rng.Start > offset
	})
	var best *locatorEntry
	for i := idx - 1; i >= 0; i-- {
		e := &l.entries[i]
		if best != nil && e.rng.Start < best.rng.Start {
			break
		}
		if !e.rng.Contains(offset) {
			continue
		}
		if best == nil || e.seq > best.seq {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.obj
}
