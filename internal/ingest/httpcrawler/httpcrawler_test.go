package httpcrawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/stretchr/testify/require"
)

func TestDocuments_CrawlsLinkedPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Home</h1><a href="/page2.html">next</a></body></html>`))
	})
	mux.HandleFunc("/page2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Page 2</h1></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := New("docs-1", srv.URL+"/index.html", 2, nil, nil, 0)
	out := make(chan ingest.RawDocument, 10)
	errc := make(chan error, 10)

	a.Documents(context.Background(), out, errc)
	close(out)
	close(errc)

	for err := range errc {
		t.Fatalf("unexpected error: %v", err)
	}

	var urls []string
	for d := range out {
		urls = append(urls, d.URL)
	}
	require.Len(t, urls, 2)
}

func TestDocuments_RespectsMaxDepth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/b.html">b</a></body></html>`))
	})
	mux.HandleFunc("/b.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/c.html">c</a></body></html>`))
	})
	mux.HandleFunc("/c.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>leaf</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := New("docs-1", srv.URL+"/a.html", 1, nil, nil, 0)
	out := make(chan ingest.RawDocument, 10)
	errc := make(chan error, 10)
	a.Documents(context.Background(), out, errc)
	close(out)
	close(errc)

	var count int
	for range out {
		count++
	}
	require.Equal(t, 2, count) // a.html (depth 0) + b.html (depth 1), not c.html
}
