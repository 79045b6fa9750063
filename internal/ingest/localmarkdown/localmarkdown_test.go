package localmarkdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/stretchr/testify/require"
)

func TestDocuments_WalksAndFilters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "skip.md"), []byte("skip"), 0o644))

	a, err := New("local-1", dir, "docs", []string{"**/*.md"}, []string{"node_modules/**"})
	require.NoError(t, err)

	out := make(chan ingest.RawDocument, 10)
	errc := make(chan error, 1)
	a.Documents(context.Background(), out, errc)
	close(out)

	select {
	case err := <-errc:
		t.Fatalf("unexpected error: %v", err)
	default:
	}

	var docs []ingest.RawDocument
	for d := range out {
		docs = append(docs, d)
	}
	require.Len(t, docs, 1)
	require.Equal(t, "generated-docs://docs/a.md", docs[0].URL)
}

func TestCursor_UpdatesAfterWalk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A"), 0o644))

	a, err := New("local-1", dir, "docs", nil, nil)
	require.NoError(t, err)

	out := make(chan ingest.RawDocument, 10)
	errc := make(chan error, 1)
	a.Documents(context.Background(), out, errc)
	close(out)
	for range out {
	}

	require.Equal(t, "local-1", a.Cursor().SourceID)
}

func TestWatch_FiresOnChangeAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A"), 0o644))

	a, err := New("local-1", dir, "docs", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fired := make(chan struct{}, 1)
	go a.Watch(ctx, 50*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# B"), 0o644))

	select {
	case <-fired:
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("onChange was not called within timeout")
	}
}
