package dedupe

import (
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feeddedup/pkg/models"
	"github.com/thebtf/feeddedup/pkg/similarity"
)

// Stats describes one elimination pass.
type Stats struct {
	Sources     int `json:"sources"`
	ItemsIn     int `json:"items_in"`
	ItemsOut    int `json:"items_out"`
	Removed     int `json:"removed"`
	Anchors     int `json:"anchors"`
	Comparisons int `json:"comparisons"`
	Rounds      int `json:"rounds"`
}

// arena holds one source's items with per-item seen/removed flags.
// Items are addressed by their original index, which never shifts.
type arena struct {
	items   []models.Item
	seen    []bool
	removed []bool
	cursor  int // no live unseen item exists before cursor
}

func newArena(items []models.Item) *arena {
	return &arena{
		items:   items,
		seen:    make([]bool, len(items)),
		removed: make([]bool, len(items)),
	}
}

// nextAnchor returns the index of the first live unseen item, or -1.
func (a *arena) nextAnchor() int {
	for a.cursor < len(a.items) {
		if !a.seen[a.cursor] && !a.removed[a.cursor] {
			return a.cursor
		}
		a.cursor++
	}
	return -1
}

// survivors returns the live items in original order.
func (a *arena) survivors() []models.Item {
	out := make([]models.Item, 0, len(a.items))
	for i, item := range a.items {
		if !a.removed[i] {
			out = append(out, item)
		}
	}
	return out
}

// Eliminate removes cross-source duplicates from coll in place, keeping one
// item per duplicate cluster.
//
// Sources are swept in the scheduler's order. On its turn an active source
// offers its first unseen item as the anchor; every unseen item of every
// other active source scoring ScaledCosine >= threshold against the anchor is
// removed, then the anchor is marked seen. A source with no unseen item left
// becomes inactive. The pass ends when no source is active.
//
// Items are never compared with items of their own source, and an anchor is
// never compared with itself. Survivors keep their original relative order
// and every source stays in the collection, possibly empty. A nil scheduler
// uses a randomly seeded one.
func Eliminate(coll *models.SourceCollection, threshold float64, sched *Scheduler) Stats {
	if sched == nil {
		sched = NewRandomScheduler()
	}

	n := len(coll.Sources)
	stats := Stats{Sources: n, ItemsIn: coll.Len()}

	arenas := make([]*arena, n)
	for i, src := range coll.Sources {
		arenas[i] = newArena(src.Items)
	}

	order := sched.Order(n)
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	remaining := n

	for remaining > 0 {
		stats.Rounds++
		for _, si := range order {
			if !active[si] {
				continue
			}

			src := arenas[si]
			anchorIdx := src.nextAnchor()
			if anchorIdx < 0 {
				active[si] = false
				remaining--
				continue
			}
			anchor := src.items[anchorIdx]
			stats.Anchors++

			for _, oi := range order {
				if oi == si || !active[oi] {
					continue
				}
				other := arenas[oi]
				for j := range other.items {
					if other.seen[j] || other.removed[j] {
						continue
					}
					stats.Comparisons++
					score := similarity.ScaledCosine(other.items[j].Fingerprint, anchor.Fingerprint)
					if score >= threshold {
						other.removed[j] = true
						stats.Removed++
						logRemoval(coll.Sources[si].Name, anchor.Text, coll.Sources[oi].Name, other.items[j].Text, score)
					}
				}
			}

			src.seen[anchorIdx] = true
		}
	}

	for i := range coll.Sources {
		coll.Sources[i].Items = arenas[i].survivors()
	}
	stats.ItemsOut = stats.ItemsIn - stats.Removed
	return stats
}

func logRemoval(anchorSource, anchorText, source, text string, score float64) {
	e := log.Debug()
	if !e.Enabled() {
		return
	}
	e = e.Str("anchor_source", anchorSource).
		Str("anchor", anchorText).
		Str("source", source).
		Str("removed", text).
		Float64("score", score)
	if overlap, ok := termOverlap(anchorText, text); ok {
		e = e.Float64("term_overlap", overlap)
	}
	e.Msg("Duplicate removed")
}

// termOverlap is the Jaccard similarity of the two texts' terms.
// It reports false when neither text has any terms.
func termOverlap(a, b string) (float64, bool) {
	setA, setB := similarity.TermSet(a), similarity.TermSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0, false
	}
	return similarity.JaccardSimilarity(setA, setB), true
}
