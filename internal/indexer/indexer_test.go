package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/chunker"
	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

type fakeAdapter struct {
	docs []ingest.RawDocument
}

func (f *fakeAdapter) Documents(ctx context.Context, out chan<- ingest.RawDocument, errc chan<- error) {
	for _, d := range f.docs {
		out <- d
	}
}

func (f *fakeAdapter) Cursor() ingest.ResumeCursor { return ingest.ResumeCursor{} }

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2, 0.3}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	t.Cleanup(srv.Close)

	embed := embedclient.New(srv.URL, "test-model", 3)
	return New(vectorstore.New(), textstore.New(), embed, chunker.New(200, 20))
}

func TestRun_IndexesNewDocument(t *testing.T) {
	idx := newTestIndexer(t)
	adapter := &fakeAdapter{docs: []ingest.RawDocument{
		{URL: "doc://1", SourceID: "src-1", ContentType: "markdown", Content: "# Title\n\nSome body text.", ContentHash: chunk.HashContent("v1")},
	}}

	stats, err := idx.Run(context.Background(), "proj-1", adapter)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocumentsSeen)
	require.Equal(t, 1, stats.DocumentsChanged)
	require.Greater(t, stats.ChunksWritten, 0)
}

func TestRun_SkipsUnchangedDocument(t *testing.T) {
	idx := newTestIndexer(t)
	doc := ingest.RawDocument{URL: "doc://1", SourceID: "src-1", ContentType: "markdown", Content: "# Title\n\nBody.", ContentHash: chunk.HashContent("v1")}

	_, err := idx.Run(context.Background(), "proj-1", &fakeAdapter{docs: []ingest.RawDocument{doc}})
	require.NoError(t, err)

	stats, err := idx.Run(context.Background(), "proj-1", &fakeAdapter{docs: []ingest.RawDocument{doc}})
	require.NoError(t, err)
	require.Equal(t, 0, stats.DocumentsChanged)
}

func TestRun_OrphansMissingDocuments(t *testing.T) {
	idx := newTestIndexer(t)
	doc := ingest.RawDocument{URL: "doc://1", SourceID: "src-1", ContentType: "markdown", Content: "# Title\n\nBody.", ContentHash: chunk.HashContent("v1")}

	_, err := idx.Run(context.Background(), "proj-1", &fakeAdapter{docs: []ingest.RawDocument{doc}})
	require.NoError(t, err)

	stats, err := idx.Run(context.Background(), "proj-1", &fakeAdapter{docs: nil})
	require.NoError(t, err)
	require.Greater(t, stats.ChunksOrphaned, 0)
}
