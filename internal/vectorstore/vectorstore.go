// Package vectorstore is the dense-vector index (C2), one chromem-go
// collection per project so a project's chunks never leak into
// another project's kNN search. Grounded on the teacher's
// internal/mcp/chromem_searcher.go: document shape, atomic
// reload-under-RWMutex, and incremental delete+add, generalized from
// one global collection to per-project collections.
package vectorstore

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
)

// Store holds one chromem-go collection per project.
type Store struct {
	mu          sync.RWMutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// New creates an empty, in-memory vector store.
func New() *Store {
	return &Store{db: chromem.NewDB(), collections: map[string]*chromem.Collection{}}
}

func collectionName(projectID string) string { return "project-" + projectID }

func (s *Store) collection(projectID string) (*chromem.Collection, error) {
	s.mu.RLock()
	c, ok := s.collections[projectID]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.collections[projectID]; ok {
		return c, nil
	}
	c, err := s.db.CreateCollection(collectionName(projectID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection for project %s: %w", projectID, err)
	}
	s.collections[projectID] = c
	return c, nil
}

// Upsert embeds no text itself; callers supply chunks that already
// carry embeddings via the parallel embeddings slice, matching the
// teacher's AddDocument(Document{Embedding: ...}) flow.
func (s *Store) Upsert(ctx context.Context, chunks []chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}
	byProject := map[string][]int{}
	for i, c := range chunks {
		byProject[c.ProjectID] = append(byProject[c.ProjectID], i)
	}
	for projectID, indices := range byProject {
		coll, err := s.collection(projectID)
		if err != nil {
			return err
		}
		for _, i := range indices {
			c := chunks[i]
			doc := chromem.Document{
				ID:        c.ID,
				Content:   c.Text,
				Embedding: embeddings[i],
				Metadata:  metadataOf(c),
			}
			if err := coll.AddDocument(ctx, doc); err != nil {
				return fmt.Errorf("add chunk %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

func metadataOf(c chunk.Chunk) map[string]string {
	m := map[string]string{
		"documentId": c.DocumentID,
		"sourceId":   c.SourceID,
		"type":       string(c.Type),
		"url":        c.URL,
	}
	if c.Language != "" {
		m["language"] = c.Language
	}
	return m
}

// Delete removes chunks (by ID) from a project's collection, for
// orphaning and re-chunking, mirroring the teacher's incremental
// delete path in UpdateIncremental.
func (s *Store) Delete(ctx context.Context, projectID string, chunkIDs []string) error {
	coll, err := s.collection(projectID)
	if err != nil {
		return err
	}
	for _, id := range chunkIDs {
		if err := coll.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	return nil
}

// Match is one kNN hit, carrying the rank used for RRF fusion.
type Match struct {
	ChunkID string
	Score   float32
	Rank    int
}

// Query runs a kNN search scoped to a single project, returning at most
// limit matches (fewer when the project holds fewer vectors).
func (s *Store) Query(ctx context.Context, projectID string, embedding []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	coll, ok := s.collections[projectID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if n := coll.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	docs, err := coll.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	matches := make([]Match, len(docs))
	for i, d := range docs {
		matches[i] = Match{ChunkID: d.ID, Score: d.Similarity, Rank: i + 1}
	}
	return matches, nil
}
