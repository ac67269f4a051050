// Package rank implements Reciprocal Rank Fusion and LLM-based re-ranking
// over storage.SearchResult lists, grounded on
// original_source/crates/lib/src/search.rs's reciprocal_rank_fusion usage.
package rank

import (
	"sort"

	"github.com/anyrag-go/ragcore/internal/storage"
)

// DefaultK is the widely-used RRF constant.
const DefaultK = 60

// ReciprocalRankFusion fuses N ranked lists, grouped by Link, into a single
// list ordered descending by fused score. Each result's fused score is
// Σ 1/(k + rank_i) across every list it appears in (1-indexed rank). Ties
// are broken by first appearance across the input lists.
func ReciprocalRankFusion(k int, lists ...[]storage.SearchResult) []storage.SearchResult {
	if k <= 0 {
		k = DefaultK
	}

	type entry struct {
		result storage.SearchResult
		score  float64
		order  int
	}

	byLink := make(map[string]*entry)
	var order int

	for _, list := range lists {
		for i, r := range list {
			rank := i + 1
			contribution := 1.0 / float64(k+rank)

			if e, ok := byLink[r.Link]; ok {
				e.score += contribution
				continue
			}
			byLink[r.Link] = &entry{result: r, score: contribution, order: order}
			order++
		}
	}

	entries := make([]*entry, 0, len(byLink))
	for _, e := range byLink {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	out := make([]storage.SearchResult, len(entries))
	for i, e := range entries {
		out[i] = e.result
		out[i].Score = e.score
	}
	return out
}
