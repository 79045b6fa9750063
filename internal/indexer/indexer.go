// Package indexer drives the parse -> chunk -> embed -> upsert pipeline
// for one source's documents, generalized from the teacher's
// internal/indexer/impl.go processFiles pipeline (collect metadata,
// write before chunks, phase timing via log.Printf) to the
// multi-project, multi-source-type document model: a RawDocument
// from any ingest.Adapter replaces the teacher's on-disk code/doc
// file, and content-hash comparison against the text store replaces
// the teacher's file-mtime change detection.
package indexer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mvp-joe/docs-retriever/internal/apperrors"
	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/chunker"
	"github.com/mvp-joe/docs-retriever/internal/docparse/htmlparser"
	"github.com/mvp-joe/docs-retriever/internal/docparse/mdparser"
	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

// Stats summarizes one Run invocation, mirroring the teacher's
// ProcessingStats counters.
type Stats struct {
	DocumentsSeen    int
	DocumentsChanged int
	ChunksWritten    int
	ChunksOrphaned   int
	Errors           int
}

// Indexer owns the stores and embedding client shared across runs for
// every project.
type Indexer struct {
	Vectors    *vectorstore.Store
	Text       *textstore.Store
	Embed      *embedclient.Client
	Chunker    *chunker.Chunker
	BatchSize  int
	ProgressCh chan<- embedclient.Progress
}

// New wires an Indexer from its four collaborators.
func New(vectors *vectorstore.Store, text *textstore.Store, embed *embedclient.Client, c *chunker.Chunker) *Indexer {
	return &Indexer{Vectors: vectors, Text: text, Embed: embed, Chunker: c, BatchSize: 32}
}

// Run drains every RawDocument an adapter produces, skips documents
// whose content hash is unchanged, and writes new/changed chunks to
// both stores. Text store writes happen before vector store writes,
// the same text-then-vector ordering the teacher applies to
// files-before-chunks: the text store is authoritative for chunk
// metadata, so it must hold a record before the vector store is asked
// to serve search results referencing it.
func (idx *Indexer) Run(ctx context.Context, projectID string, adapter ingest.Adapter) (Stats, error) {
	out := make(chan ingest.RawDocument, 16)
	errc := make(chan error, 16)

	go func() {
		adapter.Documents(ctx, out, errc)
		close(out)
		close(errc)
	}()

	var stats Stats
	seenDocumentIDs := make(map[string]bool)

	for doc := range out {
		stats.DocumentsSeen++
		documentID := chunk.HashContent(doc.URL)
		seenDocumentIDs[documentID] = true

		if !idx.changed(projectID, documentID, doc.ContentHash) {
			continue
		}
		stats.DocumentsChanged++

		start := time.Now()
		chunks, err := idx.parseAndChunk(doc)
		if err != nil {
			log.Printf("indexer: parse %s: %v", doc.URL, err)
			stats.Errors++
			continue
		}

		written, err := idx.writeChunks(ctx, projectID, documentID, chunks)
		if err != nil {
			log.Printf("indexer: write %s: %v", doc.URL, err)
			stats.Errors++
			continue
		}
		if err := idx.Text.SetDocumentContentHash(projectID, documentID, doc.ContentHash, time.Now()); err != nil {
			log.Printf("indexer: record document hash %s: %v", doc.URL, err)
		}
		stats.ChunksWritten += written
		log.Printf("[TIMING] indexed %s: %d chunks in %v", doc.URL, written, time.Since(start))
	}

	for err := range errc {
		if err != nil {
			log.Printf("indexer: adapter error: %v", err)
			stats.Errors++
		}
	}

	orphaned, err := idx.orphanMissing(projectID, seenDocumentIDs)
	if err != nil {
		return stats, err
	}
	stats.ChunksOrphaned = orphaned

	return stats, nil
}

func (idx *Indexer) effectiveBatchSize() int {
	if idx.BatchSize <= 0 {
		return 32
	}
	return idx.BatchSize
}

// changed reports whether a document's content differs from the
// whole-document hash recorded the last time it was indexed. This is
// a coarse, cheap gate that lets Run skip parsing and chunking
// entirely for unchanged documents; writeChunks separately diffs
// per-chunk hashes for documents that do change, so only the chunks
// that actually changed get re-embedded.
func (idx *Indexer) changed(projectID, documentID, contentHash string) bool {
	stored, ok := idx.Text.DocumentContentHash(projectID, documentID)
	if !ok {
		return true
	}
	return stored != contentHash
}

func (idx *Indexer) parseAndChunk(doc ingest.RawDocument) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	switch doc.ContentType {
	case "html":
		secs, err := htmlparser.Parse(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		chunks = idx.Chunker.Chunk(secs, doc.SourceID, doc.URL)
	default:
		secs := mdparser.Parse(doc.Content)
		chunks = idx.Chunker.Chunk(secs, doc.SourceID, doc.URL)
	}

	documentID := chunk.HashContent(doc.URL)
	now := time.Now()
	for i := range chunks {
		chunks[i].ProjectID = ""
		chunks[i].DocumentID = documentID
		chunks[i].URL = doc.URL
		// ContentHash is left as the chunker's own per-chunk hash
		// (chunk.HashContent(text)), not the whole-document hash, so
		// per-chunk change detection in writeChunks can tell which
		// chunks of a changed document actually changed.
		chunks[i].CreatedAt = now
		chunks[i].UpdatedAt = now
		if chunks[i].Title == "" {
			chunks[i].Title = doc.Title
		}
	}
	return chunks, nil
}

// writeChunks diffs the document's current chunks against the
// previously stored ones and only re-embeds/upserts chunks whose
// chunkId is new or whose contentHash changed (spec §4.5 step 4); an
// unchanged chunk that is still pendingEmbedding from a prior failed
// run is retried regardless. It returns the number of chunks actually
// written (re)written to the stores.
func (idx *Indexer) writeChunks(ctx context.Context, projectID, documentID string, chunks []chunk.Chunk) (int, error) {
	existing := idx.Text.ByDocument(projectID, documentID)
	existingByID := make(map[string]chunk.Chunk, len(existing))
	for _, c := range existing {
		existingByID[c.ID] = c
	}

	for i := range chunks {
		chunks[i].ProjectID = projectID
	}

	var toEmbed []chunk.Chunk
	for _, c := range chunks {
		prev, ok := existingByID[c.ID]
		if ok && prev.ContentHash == c.ContentHash && !prev.IsOrphaned() && !prev.PendingEmbedding {
			continue
		}
		toEmbed = append(toEmbed, c)
	}

	if len(toEmbed) > 0 {
		if err := idx.Text.Upsert(ctx, toEmbed); err != nil {
			return 0, apperrors.StoreError("text store upsert failed", err)
		}

		texts := make([]string, len(toEmbed))
		for i, c := range toEmbed {
			texts[i] = c.Text
		}
		embeddings, err := embedclient.EmbedBatched(ctx, idx.Embed, texts, embedclient.ModePassage, idx.effectiveBatchSize(), idx.ProgressCh)
		if err != nil {
			idx.markPendingEmbedding(ctx, toEmbed)
			return 0, apperrors.EmbeddingError("embedding failed", err)
		}
		if err := idx.Vectors.Upsert(ctx, toEmbed, embeddings); err != nil {
			idx.markPendingEmbedding(ctx, toEmbed)
			return 0, apperrors.StoreError("vector store upsert failed", err)
		}
	}

	if len(existing) > 0 {
		keep := make(map[string]bool, len(chunks))
		for _, c := range chunks {
			keep[c.ID] = true
		}
		var staleIDs []string
		for _, c := range existing {
			if !keep[c.ID] {
				staleIDs = append(staleIDs, c.ID)
			}
		}
		if len(staleIDs) > 0 {
			idx.Text.Orphan(projectID, staleIDs, time.Now())
		}
	}

	return len(toEmbed), nil
}

// markPendingEmbedding re-upserts the text store's record for each
// chunk with PendingEmbedding set. The chunk was already written to
// C3 above without an accompanying C2 (vector store) record, so it
// must be flagged and excluded from dense search until a later run
// retries the embedding successfully (spec §4.5 step 4, §7).
func (idx *Indexer) markPendingEmbedding(ctx context.Context, chunks []chunk.Chunk) {
	pending := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		c.PendingEmbedding = true
		pending[i] = c
	}
	if err := idx.Text.Upsert(ctx, pending); err != nil {
		log.Printf("indexer: mark pendingEmbedding: %v", err)
	}
}

// orphanMissing marks every chunk whose document was not seen in this
// run as orphaned, so stale results are excluded from search without
// needing a destructive delete (spec's soft-delete requirement).
func (idx *Indexer) orphanMissing(projectID string, seenDocumentIDs map[string]bool) (int, error) {
	n := 0
	docIDs := idx.Text.DocumentIDs(projectID)
	for _, documentID := range docIDs {
		if seenDocumentIDs[documentID] {
			continue
		}
		chunks := idx.Text.ByDocument(projectID, documentID)
		var ids []string
		for _, c := range chunks {
			if !c.IsOrphaned() {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) > 0 {
			idx.Text.Orphan(projectID, ids, time.Now())
			n += len(ids)
		}
	}
	return n, nil
}
