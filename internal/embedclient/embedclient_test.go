package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = []float32{1, 2, 3}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", 3)
	out, err := c.Embed(context.Background(), []string{"a", "b"}, ModePassage)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestEmbed_RetriesOn500(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 1)
	c.BaseDelay = time.Millisecond
	out, err := c.Embed(context.Background(), []string{"a"}, ModePassage)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbed_NonRetryableFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 1)
	_, err := c.Embed(context.Background(), []string{"a"}, ModePassage)
	require.Error(t, err)
}

func TestEmbedBatched_ReportsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, "m", 1)
	progressCh := make(chan Progress, 10)
	texts := []string{"a", "b", "c", "d", "e"}
	out, err := EmbedBatched(context.Background(), c, texts, ModePassage, 2, progressCh)
	close(progressCh)
	require.NoError(t, err)
	require.Len(t, out, 5)

	var last Progress
	for p := range progressCh {
		last = p
	}
	require.Equal(t, 5, last.ProcessedChunks)
	require.Equal(t, 3, last.TotalBatches)
}
