package textstore

import (
	"context"
	"testing"
	"time"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndSearch_ScopedByProject(t *testing.T) {
	s := New()
	ctx := context.Background()

	chunks := []chunk.Chunk{
		{ID: "c1", ProjectID: "proj-a", Text: "authentication middleware guide"},
		{ID: "c2", ProjectID: "proj-b", Text: "unrelated content about gardening"},
	}
	require.NoError(t, s.Upsert(ctx, chunks))

	matches, err := s.Search(ctx, "proj-a", "authentication", 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "c1", matches[0].ChunkID)

	matches, err = s.Search(ctx, "proj-b", "authentication", 10, nil)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestSearch_FiltersByType(t *testing.T) {
	s := New()
	ctx := context.Background()
	chunks := []chunk.Chunk{
		{ID: "c1", ProjectID: "p", Type: chunk.TypeProse, Text: "authentication guide"},
		{ID: "c2", ProjectID: "p", Type: chunk.TypeCode, Text: "authentication example code"},
	}
	require.NoError(t, s.Upsert(ctx, chunks))

	matches, err := s.Search(ctx, "p", "authentication", 10, []chunk.Type{chunk.TypeCode})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "c2", matches[0].ChunkID)
}

func TestGet_ReturnsRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []chunk.Chunk{{ID: "c1", ProjectID: "p", Text: "hello"}}))

	c, ok := s.Get("p", "c1")
	require.True(t, ok)
	require.Equal(t, "hello", c.Text)

	_, ok = s.Get("p", "missing")
	require.False(t, ok)
}

func TestOrphan_FlagsRecordAndExcludesFromSearch(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []chunk.Chunk{{ID: "c1", ProjectID: "p", Text: "hello"}}))

	s.Orphan("p", []string{"c1"}, time.Now())

	c, ok := s.Get("p", "c1")
	require.True(t, ok, "orphaning flags the SQLite record rather than deleting it")
	require.True(t, c.IsOrphaned())

	matches, err := s.Search(ctx, "p", "hello", 10, nil)
	require.NoError(t, err)
	require.Empty(t, matches, "orphaning removes the chunk from the live bleve index")
}

func TestDelete_RemovesFromIndexAndRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []chunk.Chunk{{ID: "c1", ProjectID: "p", Text: "hello world"}}))
	require.NoError(t, s.Delete("p", []string{"c1"}))

	_, ok := s.Get("p", "c1")
	require.False(t, ok)

	matches, err := s.Search(ctx, "p", "hello", 10, nil)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestByDocument_OrderedByChunkIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	chunks := []chunk.Chunk{
		{ID: "c2", ProjectID: "p", DocumentID: "doc-1", ChunkIndex: 1, Text: "b"},
		{ID: "c1", ProjectID: "p", DocumentID: "doc-1", ChunkIndex: 0, Text: "a"},
	}
	require.NoError(t, s.Upsert(ctx, chunks))

	ordered := s.ByDocument("p", "doc-1")
	require.Len(t, ordered, 2)
	require.Equal(t, "c1", ordered[0].ID)
	require.Equal(t, "c2", ordered[1].ID)
}
