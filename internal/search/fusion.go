// Package search implements the Hybrid Searcher (C9): Reciprocal Rank
// Fusion over the vector store and text store's per-list rankings.
// Grounded on Aman-CERP-amanmcp/internal/search/fusion.go's RRFFusion
// struct and sort/tie-break conventions, with one deliberate deviation:
// a chunk absent from a list contributes zero from that list rather
// than amanmcp's missing_rank = max(len1,len2)+1 compensation.
package search

import "sort"

// DefaultK is the RRF smoothing constant, k=60, matching common
// practice (Azure AI Search, OpenSearch) and the pack's own reference.
const DefaultK = 60

// Result is one chunk's fused ranking.
type Result struct {
	ChunkID     string
	RRFScore    float64
	TextScore   float64
	TextRank    int // 1-indexed, 0 if absent from the text-store list
	VectorScore float64
	VectorRank  int // 1-indexed, 0 if absent from the vector-store list
	InBothLists bool
}

// Fuser combines a text-store ranking and a vector-store ranking.
type Fuser struct {
	K int
}

// NewFuser returns a Fuser with the default K, or a custom one if k > 0.
func NewFuser(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{K: k}
}

// TextHit and VectorHit are the minimal per-list inputs a Fuser needs;
// the Text/Vector Store Match types satisfy these by field name.
type TextHit struct {
	ChunkID string
	Score   float64
}

type VectorHit struct {
	ChunkID string
	Score   float64
}

// Fuse computes RRF scores: score(c) = Σ_l 1/(K+rank_l(c)), summing
// only over the lists a chunk actually appears in — a chunk missing
// from a list contributes nothing from it, per spec (not amanmcp's
// missing-rank penalty).
func (f *Fuser) Fuse(textHits []TextHit, vectorHits []VectorHit) []Result {
	if len(textHits) == 0 && len(vectorHits) == 0 {
		return []Result{}
	}

	byID := map[string]*Result{}
	get := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{ChunkID: id}
		byID[id] = r
		return r
	}

	for i, h := range textHits {
		r := get(h.ChunkID)
		r.TextScore = h.Score
		r.TextRank = i + 1
		r.RRFScore += 1.0 / float64(f.K+i+1)
	}
	for i, h := range vectorHits {
		r := get(h.ChunkID)
		r.VectorScore = h.Score
		r.VectorRank = i + 1
		r.RRFScore += 1.0 / float64(f.K+i+1)
		if r.TextRank > 0 {
			r.InBothLists = true
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// less orders by RRF score desc, then in-both-lists first, then text
// score desc, then ChunkID asc — matching the pack's tie-break order.
func less(a, b Result) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.TextScore != b.TextScore {
		return a.TextScore > b.TextScore
	}
	return a.ChunkID < b.ChunkID
}
