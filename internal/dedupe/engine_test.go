package dedupe

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/feeddedup/pkg/models"
)

// unit returns a 2D unit vector at angle deg.
func unit(deg float64) []float32 {
	rad := deg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

// basis returns the i-th standard basis vector of dimension dim.
func basis(i, dim int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

// collection builds a SourceCollection from a feed and a text->vector table.
func collection(t *testing.T, feed models.Feed, vecs map[string][]float32) *models.SourceCollection {
	t.Helper()
	coll, err := models.NewSourceCollection(feed, vecs)
	require.NoError(t, err)
	return coll
}

func countText(feed models.Feed, text string) int {
	n := 0
	for _, items := range feed {
		for _, item := range items {
			if item == text {
				n++
			}
		}
	}
	return n
}

// isSubsequence reports whether sub appears in seq in order.
func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}

func TestEliminate_ThreeSourceScenario(t *testing.T) {
	vecs := map[string][]float32{
		"x": basis(0, 3),
		"y": basis(1, 3),
		"z": basis(2, 3),
	}

	for seed := uint64(0); seed < 20; seed++ {
		feed := models.Feed{
			"A": {"x", "y"},
			"B": {"x", "y"},
			"C": {"x", "z"},
		}
		coll := collection(t, feed, vecs)

		stats := Eliminate(coll, 1.0, NewScheduler(seed))
		out := coll.Feed()

		assert.Equal(t, 1, countText(out, "x"), "seed %d", seed)
		assert.Equal(t, 1, countText(out, "y"), "seed %d", seed)
		assert.Equal(t, 0, countItems(out["C"], "y"), "seed %d", seed)
		assert.Equal(t, []string{"z"}, filter(out["C"], "z"), "seed %d", seed)
		assert.Equal(t, 3, out.Total(), "seed %d", seed)
		assert.Equal(t, 6, stats.ItemsIn)
		assert.Equal(t, 3, stats.ItemsOut)
		assert.Equal(t, 3, stats.Removed)
	}
}

func filter(items []string, text string) []string {
	var out []string
	for _, item := range items {
		if item == text {
			out = append(out, item)
		}
	}
	return out
}

func countItems(items []string, text string) int {
	return len(filter(items, text))
}

func TestEliminate_SubsequenceAndKeySet(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const dim = 8

	for trial := 0; trial < 40; trial++ {
		feed := models.Feed{}
		vecs := map[string][]float32{}
		sources := 1 + rng.IntN(5)
		for s := 0; s < sources; s++ {
			name := string(rune('a' + s))
			items := rng.IntN(6)
			feed[name] = []string{}
			for i := 0; i < items; i++ {
				// A small vocabulary so cross-source repeats are common.
				text := string(rune('A' + rng.IntN(6)))
				if _, ok := vecs[text]; !ok {
					v := make([]float32, dim)
					for d := range v {
						v[d] = float32(rng.NormFloat64())
					}
					vecs[text] = v
				}
				feed[name] = append(feed[name], text)
			}
		}

		for _, threshold := range []float64{0, 0.5, 0.7, 0.9, 1} {
			coll := collection(t, feed, vecs)
			Eliminate(coll, threshold, NewScheduler(uint64(trial)))
			out := coll.Feed()

			require.Equal(t, feed.SourceNames(), out.SourceNames())
			for name, items := range feed {
				assert.LessOrEqual(t, len(out[name]), len(items))
				assert.True(t, isSubsequence(out[name], items), "trial %d source %s: %v not a subsequence of %v", trial, name, out[name], items)
			}
			if feed.Total() > 0 {
				assert.GreaterOrEqual(t, out.Total(), 1)
			}
		}
	}
}

func TestEliminate_ThresholdZero(t *testing.T) {
	vecs := map[string][]float32{
		"p": unit(0),
		"q": unit(90),
		"r": unit(180),
		"s": unit(45),
	}

	t.Run("one item per source collapses to one survivor", func(t *testing.T) {
		for seed := uint64(0); seed < 10; seed++ {
			coll := collection(t, models.Feed{"a": {"p"}, "b": {"q"}, "c": {"r"}, "d": {}}, vecs)
			Eliminate(coll, 0, NewScheduler(seed))
			out := coll.Feed()
			assert.Equal(t, 1, out.Total())
			assert.Len(t, out, 4)
		}
	})

	t.Run("only the first anchor's source survives, intact", func(t *testing.T) {
		feed := models.Feed{"a": {"p", "q"}, "b": {"r", "s"}, "c": {"q"}}
		for seed := uint64(0); seed < 10; seed++ {
			coll := collection(t, feed, vecs)
			Eliminate(coll, 0, NewScheduler(seed))
			out := coll.Feed()

			nonEmpty := 0
			for name, items := range out {
				if len(items) > 0 {
					nonEmpty++
					assert.Equal(t, feed[name], items)
				}
			}
			assert.Equal(t, 1, nonEmpty)
		}
	})

	t.Run("negative threshold matches everything", func(t *testing.T) {
		coll := collection(t, models.Feed{"a": {"p"}, "b": {"r"}}, vecs)
		Eliminate(coll, -0.5, NewScheduler(1))
		assert.Equal(t, 1, coll.Feed().Total())
	})
}

func TestEliminate_ThresholdAboveOneKeepsEverything(t *testing.T) {
	vecs := map[string][]float32{"x": unit(10)}
	feed := models.Feed{"a": {"x"}, "b": {"x"}, "c": {"x", "x"}}

	coll := collection(t, feed, vecs)
	stats := Eliminate(coll, 1.01, NewScheduler(9))

	assert.Equal(t, feed, coll.Feed())
	assert.Equal(t, 0, stats.Removed)
}

func TestEliminate_NoSelfComparison(t *testing.T) {
	vecs := map[string][]float32{"only": unit(30), "other": unit(200)}

	coll := collection(t, models.Feed{"solo": {"only"}}, vecs)
	stats := Eliminate(coll, 0, NewScheduler(1))
	assert.Equal(t, []string{"only"}, coll.Feed()["solo"])
	assert.Equal(t, 0, stats.Comparisons)

	// A single source is never deduplicated against itself, whatever the threshold.
	coll = collection(t, models.Feed{"solo": {"only", "other", "only"}}, vecs)
	Eliminate(coll, 0, NewScheduler(1))
	assert.Equal(t, []string{"only", "other", "only"}, coll.Feed()["solo"])
}

func TestEliminate_KeepsIntraSourceDuplicates(t *testing.T) {
	vecs := map[string][]float32{"x": unit(0), "y": unit(90)}
	feed := models.Feed{"a": {"x", "x", "y"}, "b": {"y"}}

	for seed := uint64(0); seed < 10; seed++ {
		coll := collection(t, feed, vecs)
		Eliminate(coll, 1.0, NewScheduler(seed))
		out := coll.Feed()

		assert.Equal(t, 2, countItems(out["a"], "x"))
		assert.Equal(t, 1, countText(out, "y"))
	}
}

func TestEliminate_SameSeedSameResult(t *testing.T) {
	vecs := map[string][]float32{"x": unit(0), "y": unit(5), "z": unit(120)}
	feed := models.Feed{"a": {"x", "z"}, "b": {"y", "x"}, "c": {"z", "y"}}

	first := collection(t, feed, vecs)
	Eliminate(first, 0.9, NewScheduler(77))
	second := collection(t, feed, vecs)
	Eliminate(second, 0.9, NewScheduler(77))

	assert.Equal(t, first.Feed(), second.Feed())
}

func TestEliminate_SurvivorSourceVaries(t *testing.T) {
	vecs := map[string][]float32{"x": unit(0)}
	winners := make(map[string]bool)

	for seed := uint64(0); seed < 50; seed++ {
		coll := collection(t, models.Feed{"a": {"x"}, "b": {"x"}, "c": {"x"}}, vecs)
		Eliminate(coll, 1.0, NewScheduler(seed))
		for name, items := range coll.Feed() {
			if len(items) > 0 {
				winners[name] = true
			}
		}
	}
	assert.Greater(t, len(winners), 1, "the same source should not always win")
}

func TestEliminate_NonTransitiveChainDependsOnOrder(t *testing.T) {
	// a~b and b~c at 40 degrees, but a and c are 80 degrees apart.
	vecs := map[string][]float32{"a": unit(0), "b": unit(40), "c": unit(80)}
	threshold := (math.Cos(50*math.Pi/180) + 1) / 2
	outcomes := make(map[int]bool)

	for seed := uint64(0); seed < 40; seed++ {
		coll := collection(t, models.Feed{"s1": {"a"}, "s2": {"b"}, "s3": {"c"}}, vecs)
		Eliminate(coll, threshold, NewScheduler(seed))
		outcomes[coll.Feed().Total()] = true
	}

	// b as first anchor absorbs both ends; a or c first leaves two survivors.
	assert.Equal(t, map[int]bool{1: true, 2: true}, outcomes)
}

func TestEliminate_ZeroVectorNeverMatches(t *testing.T) {
	vecs := map[string][]float32{"x": unit(0), "zero": {0, 0}}
	coll := collection(t, models.Feed{"a": {"x"}, "b": {"zero"}}, vecs)

	Eliminate(coll, 0, NewScheduler(1))
	assert.Equal(t, 2, coll.Feed().Total())
}

func TestEliminate_EmptyInputs(t *testing.T) {
	coll := &models.SourceCollection{}
	stats := Eliminate(coll, 0.7, nil)
	assert.Equal(t, Stats{}, stats)

	coll = collection(t, models.Feed{"a": {}, "b": nil}, nil)
	Eliminate(coll, 0.7, NewScheduler(1))
	out := coll.Feed()
	assert.Equal(t, models.Feed{"a": {}, "b": {}}, out)
}

func TestEliminate_SweepContinuesAfterDeactivation(t *testing.T) {
	sched := NewScheduler(3)
	require.Equal(t, []int{0, 1, 2}, NewScheduler(3).Order(3))

	// s1's x empties s2, which deactivates on its turn; s3 must still anchor
	// in the same round and remove s1's w before s1 offers it.
	vecs := map[string][]float32{"x": unit(0), "w": unit(90), "u": unit(91)}
	coll := collection(t, models.Feed{"s1": {"x", "w"}, "s2": {"x"}, "s3": {"u"}}, vecs)

	Eliminate(coll, 0.99, sched)

	assert.Equal(t, models.Feed{"s1": {"x"}, "s2": {}, "s3": {"u"}}, coll.Feed())
}

func TestTermOverlap(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		overlap float64
		ok      bool
	}{
		{name: "no terms on either side", a: "u", b: "w", ok: false},
		{name: "identical terms", a: "quick brown fox", b: "brown fox quick", overlap: 1, ok: true},
		{name: "one side without terms", a: "quick fox", b: "a", overlap: 0, ok: true},
		{name: "partial", a: "quick brown", b: "brown dog", overlap: 1.0 / 3, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlap, ok := termOverlap(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.overlap, overlap, 1e-9)
		})
	}
}

func TestLogRemoval_OmitsOverlapWithoutTerms(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	logRemoval("s3", "u", "s1", "w", 0.9999)
	assert.Contains(t, buf.String(), `"removed":"w"`)
	assert.NotContains(t, buf.String(), "term_overlap")

	buf.Reset()
	logRemoval("s1", "quick fox", "s2", "quick fox", 1)
	assert.Contains(t, buf.String(), `"term_overlap":1`)
}
