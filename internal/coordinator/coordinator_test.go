package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/docs-retriever/internal/chunker"
	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/indexer"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

func writeRegistryFixture(t *testing.T, root, docsRoot string) *registry.Registry {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sources"), 0755))
	require.NoError(t, os.MkdirAll(docsRoot, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docsRoot, "intro.md"), []byte("# Intro\n\nHello world."), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "sources", "docs.json"), []byte(`{
		"id": "docs-local",
		"kind": "local_markdown",
		"rootDir": "`+docsRoot+`",
		"urlPrefix": "test"
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "projects", "proj.json"), []byte(`{
		"id": "proj-1",
		"displayName": "Proj",
		"sourceIds": ["docs-local"]
	}`), 0644))

	reg, err := registry.Load(root)
	require.NoError(t, err)
	return reg
}

func TestRunProject_IndexesLocalMarkdownSource(t *testing.T) {
	configRoot := t.TempDir()
	docsRoot := t.TempDir()
	reg := writeRegistryFixture(t, configRoot, docsRoot)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	defer srv.Close()

	idx := indexer.New(vectorstore.New(), textstore.New(), embedclient.New(srv.URL, "m", 2), chunker.New(200, 20))
	coord := New(reg, idx)

	result, err := coord.RunProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	require.Equal(t, "done", result.Sources[0].Status)
	require.Greater(t, result.Sources[0].Stats.ChunksWritten, 0)
}

func TestRunSource_PersistsCursorForResume(t *testing.T) {
	configRoot := t.TempDir()
	docsRoot := t.TempDir()
	reg := writeRegistryFixture(t, configRoot, docsRoot)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	defer srv.Close()

	idx := indexer.New(vectorstore.New(), textstore.New(), embedclient.New(srv.URL, "m", 2), chunker.New(200, 20))
	coord := New(reg, idx)

	result, err := coord.RunSource(context.Background(), "proj-1", "docs-local")
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	require.Equal(t, "docs-local", result.Sources[0].SourceID)
	require.NotEmpty(t, result.Sources[0].RunID)

	cursor, ok := coord.LoadCursor("docs-local")
	require.True(t, ok)
	require.Equal(t, "docs-local", cursor.SourceID)
}

func TestRunSource_UnknownSourceErrors(t *testing.T) {
	configRoot := t.TempDir()
	docsRoot := t.TempDir()
	reg := writeRegistryFixture(t, configRoot, docsRoot)

	idx := indexer.New(vectorstore.New(), textstore.New(), embedclient.New("http://x", "m", 2), chunker.New(200, 20))
	coord := New(reg, idx)

	_, err := coord.RunSource(context.Background(), "proj-1", "nope")
	require.Error(t, err)
}

func TestRunProject_UnknownProjectErrors(t *testing.T) {
	configRoot := t.TempDir()
	reg, err := registry.Load(configRoot)
	require.NoError(t, err)

	coord := New(reg, indexer.New(vectorstore.New(), textstore.New(), embedclient.New("http://x", "m", 2), chunker.New(200, 20)))
	_, err = coord.RunProject(context.Background(), "missing")
	require.Error(t, err)
}
