package recall

import (
	"slices"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Select returns at most limit notes ordered by relevance to prompt.
// With limit <= 0, or no more notes than limit, notes are returned unchanged.
func Select(prompt string, notes []string, limit int) []string {
	if limit <= 0 || len(notes) <= limit {
		return slices.Clone(notes)
	}

	hits := keywordHits(prompt, notes)
	rank := similarityRank(prompt, notes)

	order := make([]int, len(notes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if hits[a] != hits[b] {
			return hits[b] - hits[a]
		}
		return rank[a] - rank[b]
	})

	out := make([]string, 0, limit)
	for _, i := range order[:limit] {
		out = append(out, notes[i])
	}
	return out
}

// keywordHits counts whole-word prompt keyword occurrences in each note.
func keywordHits(prompt string, notes []string) []int {
	hits := make([]int, len(notes))
	keywords := Keywords(prompt)
	if len(keywords) == 0 {
		return hits
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(keywords)

	for i, n := range notes {
		hits[i] = len(ac.FindAll(strings.ToLower(n)))
	}
	return hits
}

// similarityRank gives each note its position in the nearest-neighbour
// ordering for the prompt. Notes the index cannot rank share the last place.
func similarityRank(prompt string, notes []string) []int {
	rank := make([]int, len(notes))
	for i := range rank {
		rank[i] = len(notes)
	}

	idx := NewIndex()
	for i, n := range notes {
		if err := idx.Add(uint32(i), Embed(n)); err != nil {
			return rank
		}
	}

	keys, err := idx.Search(Embed(prompt), len(notes))
	if err != nil {
		return rank
	}
	for pos, k := range keys {
		rank[k] = pos
	}
	return rank
}
