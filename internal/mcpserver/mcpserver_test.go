package mcpserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/search"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

func TestNew_RegistersAllTools(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sources"), 0755))
	reg, err := registry.Load(root)
	require.NoError(t, err)

	searcher := search.New(reg, vectorstore.New(), textstore.New(), embedclient.New("http://localhost:0", "m", 2))
	s := New(reg, searcher)
	require.NotNil(t, s.mcp)
}
