package search

import (
	"context"
	"fmt"

	"github.com/mvp-joe/docs-retriever/internal/apperrors"
	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

// SearchResult is one chunk returned by the Hybrid Searcher, carrying
// the fused score, any keyword highlights, each list's component rank,
// and (when requested) its document-adjacent neighbors.
type SearchResult struct {
	Chunk          chunk.Chunk
	Score          float64
	Highlights     []string
	TextRank       int          `json:"textRank,omitempty"`
	VectorRank     int          `json:"vectorRank,omitempty"`
	AdjacentChunks []chunk.Chunk `json:"adjacentChunks,omitempty"`
}

// Response is the full hybrid-search outcome, including the
// degraded-search bookkeeping spec §4.8 requires when one store fails.
type Response struct {
	Results        []SearchResult
	Degraded       bool
	DegradedReason string
}

// Options configures one Search call, naming the option set spec §4.8
// attaches to hybrid search: the final result count, each list's
// candidate pool size, an optional type restriction, and whether to
// pull in each hit's document-adjacent neighbors.
type Options struct {
	K              int // final result count; default 10
	KDense         int // dense-list candidate pool size; default 50
	KLexical       int // lexical-list candidate pool size; default 50
	TypeFilter     []chunk.Type
	ExpandAdjacent bool
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = 10
	}
	if o.KDense <= 0 {
		o.KDense = 50
	}
	if o.KLexical <= 0 {
		o.KLexical = 50
	}
	return o
}

func (o Options) matchesType(t chunk.Type) bool {
	if len(o.TypeFilter) == 0 {
		return true
	}
	for _, want := range o.TypeFilter {
		if want == t {
			return true
		}
	}
	return false
}

// Searcher composes the Project Registry, vector store, text store,
// and embedding client into RRF-fused hybrid search, grounded on the
// teacher's internal/mcp/searcher_coordinator.go pattern of running
// both searchers and combining their output, generalized to use
// fusion instead of returning two separate tool results.
type Searcher struct {
	Registry *registry.Registry
	Vectors  *vectorstore.Store
	Text     *textstore.Store
	Embed    *embedclient.Client
	Fuser    *Fuser
}

// New builds a Searcher with the default RRF constant. reg validates
// projectId against the Project Registry before every search, per
// spec §4.8 step 1; a nil reg (as in unit tests exercising the stores
// directly) skips that validation.
func New(reg *registry.Registry, vectors *vectorstore.Store, text *textstore.Store, embed *embedclient.Client) *Searcher {
	return &Searcher{Registry: reg, Vectors: vectors, Text: text, Embed: embed, Fuser: NewFuser(0)}
}

// Search runs both stores for a project and fuses their rankings. If
// the vector store fails, results degrade to text-only (and vice
// versa) rather than failing the whole request, per spec's edge cases.
func (s *Searcher) Search(ctx context.Context, projectID, query string, opts Options) (*Response, error) {
	if query == "" {
		return nil, apperrors.QueryError("search", fmt.Errorf("query must not be empty"))
	}
	if s.Registry != nil {
		if _, err := s.Registry.Project(projectID); err != nil {
			return nil, apperrors.QueryError("search", apperrors.ErrUnknownProject)
		}
	}
	opts = opts.withDefaults()

	var textHits []TextHit
	var vectorHits []VectorHit
	resp := &Response{}

	// The lexical search runs concurrently with the query embedding; the
	// vector query follows once the embedding is available.
	var textMatches []textstore.Match
	var textErr error
	textDone := make(chan struct{})
	go func() {
		defer close(textDone)
		textMatches, textErr = s.Text.Search(ctx, projectID, query, opts.KLexical, opts.TypeFilter)
	}()
	embeddings, embedErr := s.Embed.Embed(ctx, []string{query}, embedclient.ModeQuery)
	<-textDone

	if textErr != nil {
		resp.Degraded = true
		resp.DegradedReason = fmt.Sprintf("text store unavailable: %v", textErr)
	} else {
		for _, m := range textMatches {
			textHits = append(textHits, TextHit{ChunkID: m.ChunkID, Score: m.Score})
		}
	}

	if embedErr != nil || len(embeddings) == 0 {
		resp.Degraded = true
		if resp.DegradedReason != "" {
			resp.DegradedReason += "; "
		}
		resp.DegradedReason += fmt.Sprintf("embedding unavailable: %v", embedErr)
	} else {
		vecMatches, vecErr := s.Vectors.Query(ctx, projectID, embeddings[0], opts.KDense)
		if vecErr != nil {
			resp.Degraded = true
			if resp.DegradedReason != "" {
				resp.DegradedReason += "; "
			}
			resp.DegradedReason += fmt.Sprintf("vector store unavailable: %v", vecErr)
		} else {
			for _, m := range vecMatches {
				// A chunk flagged pendingEmbedding has no current vector
				// record worth trusting: either it was never upserted (embed
				// failure) or its upsert failed after a stale one from a
				// prior revision, so it is dropped from the dense list here
				// rather than surfaced with a misleading vector rank.
				if c, ok := s.Text.Get(projectID, m.ChunkID); ok && c.PendingEmbedding {
					continue
				}
				vectorHits = append(vectorHits, VectorHit{ChunkID: m.ChunkID, Score: float64(m.Score)})
			}
		}
	}

	if textErr != nil && (embedErr != nil || s.Vectors == nil) {
		return nil, fmt.Errorf("hybrid search failed: both stores unavailable: %v / %v", textErr, embedErr)
	}

	fused := s.Fuser.Fuse(textHits, vectorHits)

	highlightsByID := map[string][]string{}
	for _, m := range textMatches {
		highlightsByID[m.ChunkID] = m.Highlights
	}

	results := make([]SearchResult, 0, opts.K)
	for _, f := range fused {
		if len(results) >= opts.K {
			break
		}
		c, ok := s.Text.Get(projectID, f.ChunkID)
		if !ok || c.IsOrphaned() || !opts.matchesType(c.Type) {
			continue
		}
		result := SearchResult{
			Chunk:      c,
			Score:      f.RRFScore,
			Highlights: highlightsByID[f.ChunkID],
			TextRank:   f.TextRank,
			VectorRank: f.VectorRank,
		}
		if opts.ExpandAdjacent {
			result.AdjacentChunks = s.ExpandAdjacent(projectID, c)
		}
		results = append(results, result)
	}
	resp.Results = results
	return resp, nil
}

// ExpandAdjacent returns the non-orphaned chunks immediately before and
// after a hit within the same document, per spec's adjacency-expansion
// step. These are attached to a hit, not added to the ranked list.
func (s *Searcher) ExpandAdjacent(projectID string, c chunk.Chunk) []chunk.Chunk {
	siblings := s.Text.ByDocument(projectID, c.DocumentID)
	var out []chunk.Chunk
	for i, sib := range siblings {
		if sib.ID != c.ID {
			continue
		}
		if i > 0 && !siblings[i-1].IsOrphaned() {
			out = append(out, siblings[i-1])
		}
		if i < len(siblings)-1 && !siblings[i+1].IsOrphaned() {
			out = append(out, siblings[i+1])
		}
		break
	}
	return out
}
