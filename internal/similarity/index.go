// Package similarity implements a small in-memory n-gram corpus used to match
// hand-maintained search labels against equipment names reported by the API.
package similarity

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultThreshold is the score a corpus entry has to exceed to count as a match.
	DefaultThreshold = 0.4
	// DefaultWarp raises the weight of shared n-grams relative to plain Jaccard similarity.
	DefaultWarp = 2.0
	// DefaultArity is the n-gram length.
	DefaultArity = 2
)

// Match is a corpus entry together with its similarity to the query.
type Match struct {
	Text  string
	Score float64
}

type entry struct {
	text  string
	grams map[string]struct{}
}

// Index is an n-gram corpus. It is built once per location and is not safe for
// concurrent mutation.
type Index struct {
	threshold float64
	warp      float64
	arity     int
	entries   []entry
	postings  map[string][]int // n-gram -> entry positions
}

// Option customises an Index.
type Option func(*Index)

// WithThreshold sets the minimum accepted score.
func WithThreshold(threshold float64) Option {
	return func(i *Index) { i.threshold = threshold }
}

// WithWarp sets the warp exponent. A warp of 1 yields plain Jaccard similarity.
func WithWarp(warp float64) Option {
	return func(i *Index) {
		if warp >= 1 {
			i.warp = warp
		}
	}
}

// WithArity sets the n-gram length.
func WithArity(arity int) Option {
	return func(i *Index) {
		if arity > 0 {
			i.arity = arity
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	idx := &Index{
		threshold: DefaultThreshold,
		warp:      DefaultWarp,
		arity:     DefaultArity,
		postings:  make(map[string][]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Len returns the number of indexed entries.
func (i *Index) Len() int {
	return len(i.entries)
}

// Add indexes text. Duplicate texts are indexed once.
func (i *Index) Add(text string) {
	for _, e := range i.entries {
		if e.text == text {
			return
		}
	}

	grams := generateNgrams(normalizeSearchText(text), i.arity)
	pos := len(i.entries)
	i.entries = append(i.entries, entry{text: text, grams: grams})
	for gram := range grams {
		i.postings[gram] = append(i.postings[gram], pos)
	}
}

// Search returns every entry scoring above the threshold, best first.
// Entries with equal scores keep insertion order.
func (i *Index) Search(query string) []Match {
	queryGrams := generateNgrams(normalizeSearchText(query), i.arity)
	if len(queryGrams) == 0 {
		return nil
	}

	shared := make(map[int]int)
	for gram := range queryGrams {
		for _, pos := range i.postings[gram] {
			shared[pos]++
		}
	}

	type ranked struct {
		pos   int
		score float64
	}
	results := make([]ranked, 0, len(shared))
	for pos, same := range shared {
		score := i.score(same, len(queryGrams), len(i.entries[pos].grams))
		if score > i.threshold {
			results = append(results, ranked{pos: pos, score: score})
		}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].score == results[b].score {
			return results[a].pos < results[b].pos
		}
		return results[a].score > results[b].score
	})

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{Text: i.entries[r.pos].text, Score: r.score})
	}
	return matches
}

// Best returns the highest scoring entry, if any clears the threshold.
func (i *Index) Best(query string) (Match, bool) {
	matches := i.Search(query)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// score computes the warped Jaccard similarity (u^w - (u-s)^w) / u^w where s is the
// number of shared n-grams and u the size of the union.
func (i *Index) score(same, queryCount, entryCount int) float64 {
	union := float64(queryCount + entryCount - same)
	if union <= 0 {
		return 0
	}
	diff := union - float64(same)
	return (math.Pow(union, i.warp) - math.Pow(diff, i.warp)) / math.Pow(union, i.warp)
}

func normalizeSearchText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// generateNgrams pads the text with spaces so that word boundaries contribute n-grams.
func generateNgrams(text string, arity int) map[string]struct{} {
	grams := make(map[string]struct{})
	if text == "" {
		return grams
	}

	pad := strings.Repeat(" ", arity-1)
	runes := []rune(pad + text + pad)
	if len(runes) < arity {
		grams[string(runes)] = struct{}{}
		return grams
	}
	for start := 0; start+arity <= len(runes); start++ {
		grams[string(runes[start:start+arity])] = struct{}{}
	}
	return grams
}
