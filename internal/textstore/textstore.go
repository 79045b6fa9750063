// Package textstore is the full-text index (C3) and the authoritative
// record of chunk metadata/orphaning, per spec. One in-memory bleve
// index per project for BM25-ish keyword search, grounded on the
// teacher's internal/mcp/exact_searcher.go (mapping, batch indexing,
// QueryStringQuery + highlighting), generalized from one global index
// to per-project indices the same way vectorstore was. The
// authoritative chunk table (metadata, orphan flags, content hash) is
// backed by `mattn/go-sqlite3` + `Masterminds/squirrel`, grounded on
// the teacher's internal/storage/schema.go + chunk_writer.go
// (SQLite schema, squirrel-built insert/select statements) — bleve
// holds only what full-text search needs, SQLite is the source of
// truth for everything else.
package textstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id          TEXT NOT NULL,
	project_id        TEXT NOT NULL,
	document_id       TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	chunk_index       INTEGER NOT NULL,
	total_chunks      INTEGER NOT NULL,
	type              TEXT NOT NULL,
	title             TEXT,
	heading_path      TEXT,
	url               TEXT,
	language          TEXT,
	content_hash      TEXT,
	created_at        DATETIME,
	updated_at        DATETIME,
	orphaned_at       DATETIME,
	pending_embedding INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (project_id, document_id);

-- documents tracks the whole-document content hash the indexer uses to
-- cheaply skip re-parsing an unchanged document, independent of the
-- per-chunk hashes stored on each chunks row.
CREATE TABLE IF NOT EXISTS documents (
	project_id   TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	updated_at   DATETIME,
	PRIMARY KEY (project_id, document_id)
);
`

// Store holds one bleve index per project for full-text search, backed
// by a SQLite database holding the authoritative chunk records.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	indices map[string]bleve.Index
}

// New opens an in-memory SQLite authoritative store. Use NewWithDB to
// persist to disk across process restarts.
func New() *Store {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(fmt.Sprintf("textstore: open in-memory sqlite: %v", err))
	}
	s, err := newStore(db)
	if err != nil {
		panic(fmt.Sprintf("textstore: init schema: %v", err))
	}
	return s
}

// NewWithDB builds a Store over a caller-provided, already-opened
// SQLite connection. The bleve search indices stay in memory either way.
func NewWithDB(db *sql.DB) (*Store, error) {
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	return &Store{db: db, indices: map[string]bleve.Index{}}, nil
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true
	text.IncludeTermVectors = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("language", keyword)
	doc.AddFieldMappingsAt("url", keyword)

	im.DefaultMapping = doc
	return im
}

func (s *Store) index(projectID string) (bleve.Index, error) {
	s.mu.RLock()
	idx, ok := s.indices[projectID]
	s.mu.RUnlock()
	if ok {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok = s.indices[projectID]; ok {
		return idx, nil
	}
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index for project %s: %w", projectID, err)
	}
	s.indices[projectID] = idx
	return idx, nil
}

type document struct {
	Text     string `json:"text"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Language string `json:"language"`
	URL      string `json:"url"`
}

// Upsert indexes a batch of chunks into bleve (batching writes 1000 at
// a time per the teacher's convention) and writes their authoritative
// records to SQLite in one transaction.
func (s *Store) Upsert(ctx context.Context, chunks []chunk.Chunk) error {
	byProject := map[string][]chunk.Chunk{}
	for _, c := range chunks {
		byProject[c.ProjectID] = append(byProject[c.ProjectID], c)
	}
	for projectID, cs := range byProject {
		idx, err := s.index(projectID)
		if err != nil {
			return err
		}
		if err := s.indexBleve(ctx, idx, cs); err != nil {
			return err
		}
		if err := s.writeRecords(ctx, cs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexBleve(ctx context.Context, idx bleve.Index, cs []chunk.Chunk) error {
	const batchSize = 1000
	batch := idx.NewBatch()
	for i, c := range cs {
		if i%batchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		doc := document{Text: c.Text, Title: c.Title, Type: string(c.Type), Language: c.Language, URL: c.URL}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("execute batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("execute final batch: %w", err)
		}
	}
	return nil
}

func (s *Store) writeRecords(ctx context.Context, cs []chunk.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cs {
		headingPath := joinHeadingPath(c.HeadingPath)
		query, args, err := sq.Replace("chunks").
			Columns("chunk_id", "project_id", "document_id", "source_id", "chunk_index", "total_chunks",
				"type", "title", "heading_path", "url", "language", "content_hash", "created_at", "updated_at", "orphaned_at", "pending_embedding").
			Values(c.ID, c.ProjectID, c.DocumentID, c.SourceID, c.ChunkIndex, c.TotalChunks,
				string(c.Type), c.Title, headingPath, c.URL, c.Language, c.ContentHash, c.CreatedAt, c.UpdatedAt, c.OrphanedAt, c.PendingEmbedding).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write chunk record %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Orphan marks chunks as orphaned in SQLite (the authoritative record
// survives for forensics and for Get/ByDocument) and removes them from
// the bleve index, so Search alone honors "excluding orphaned" per
// spec rather than relying on a downstream filter.
func (s *Store) Orphan(projectID string, chunkIDs []string, orphanedAt time.Time) {
	if len(chunkIDs) == 0 {
		return
	}
	query, args, err := sq.Update("chunks").
		Set("orphaned_at", orphanedAt).
		Where(sq.Eq{"project_id": projectID, "chunk_id": chunkIDs}).
		ToSql()
	if err == nil {
		s.db.Exec(query, args...)
	}

	if idx, err := s.index(projectID); err == nil {
		batch := idx.NewBatch()
		for _, id := range chunkIDs {
			batch.Delete(id)
		}
		idx.Batch(batch)
	}
}

// DocumentContentHash returns the whole-document content hash recorded
// for documentID, used by the Indexer to cheaply skip re-parsing a
// document whose source content has not changed since the last run.
func (s *Store) DocumentContentHash(projectID, documentID string) (string, bool) {
	var hash string
	err := s.db.QueryRow(
		`SELECT content_hash FROM documents WHERE project_id = ? AND document_id = ?`,
		projectID, documentID,
	).Scan(&hash)
	if err != nil {
		return "", false
	}
	return hash, true
}

// SetDocumentContentHash records the whole-document content hash after
// a document has been successfully parsed, chunked, and written.
func (s *Store) SetDocumentContentHash(projectID, documentID, contentHash string, updatedAt time.Time) error {
	query, args, err := sq.Replace("documents").
		Columns("project_id", "document_id", "content_hash", "updated_at").
		Values(projectID, documentID, contentHash, updatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build document upsert: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("write document hash: %w", err)
	}
	return nil
}

// Delete removes chunks from both the bleve index and the SQLite
// table, for chunks past the orphan-purge window.
func (s *Store) Delete(projectID string, chunkIDs []string) error {
	idx, err := s.index(projectID)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}

	query, args, err := sq.Delete("chunks").
		Where(sq.Eq{"project_id": projectID, "chunk_id": chunkIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete chunk records: %w", err)
	}
	return nil
}

// Get returns the authoritative record for a chunk, if present.
func (s *Store) Get(projectID, chunkID string) (chunk.Chunk, bool) {
	query, args, err := sq.Select("chunk_id", "project_id", "document_id", "source_id", "chunk_index", "total_chunks",
		"type", "title", "heading_path", "url", "language", "content_hash", "created_at", "updated_at", "orphaned_at", "pending_embedding").
		From("chunks").
		Where(sq.Eq{"project_id": projectID, "chunk_id": chunkID}).
		ToSql()
	if err != nil {
		return chunk.Chunk{}, false
	}
	row := s.db.QueryRow(query, args...)
	c, err := scanChunk(row)
	if err != nil {
		return chunk.Chunk{}, false
	}
	return c, true
}

// DocumentIDs returns the distinct document IDs with at least one
// chunk recorded for a project, used by the indexer to detect
// documents that disappeared from a source between runs.
func (s *Store) DocumentIDs(projectID string) []string {
	rows, err := s.db.Query(`SELECT DISTINCT document_id FROM chunks WHERE project_id = ?`, projectID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			out = append(out, id)
		}
	}
	return out
}

// ByDocument returns every chunk belonging to a document, ordered by
// ChunkIndex — used for the hybrid searcher's adjacency expansion.
func (s *Store) ByDocument(projectID, documentID string) []chunk.Chunk {
	query, args, err := sq.Select("chunk_id", "project_id", "document_id", "source_id", "chunk_index", "total_chunks",
		"type", "title", "heading_path", "url", "language", "content_hash", "created_at", "updated_at", "orphaned_at", "pending_embedding").
		From("chunks").
		Where(sq.Eq{"project_id": projectID, "document_id": documentID}).
		OrderBy("chunk_index ASC").
		ToSql()
	if err != nil {
		return nil
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// scanner abstracts over *sql.Row and *sql.Rows, both of which provide
// Scan with the same signature.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row scanner) (chunk.Chunk, error) {
	var c chunk.Chunk
	var typ, headingPath string
	var createdAt, updatedAt sql.NullTime
	var orphanedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ProjectID, &c.DocumentID, &c.SourceID, &c.ChunkIndex, &c.TotalChunks,
		&typ, &c.Title, &headingPath, &c.URL, &c.Language, &c.ContentHash, &createdAt, &updatedAt, &orphanedAt, &c.PendingEmbedding)
	if err != nil {
		return chunk.Chunk{}, err
	}
	c.Type = chunk.Type(typ)
	c.HeadingPath = splitHeadingPath(headingPath)
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	if orphanedAt.Valid {
		t := orphanedAt.Time
		c.OrphanedAt = &t
	}
	return c, nil
}

func joinHeadingPath(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x1f"
		}
		out += p
	}
	return out
}

func splitHeadingPath(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1f' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Match is one keyword search hit.
type Match struct {
	ChunkID    string
	Score      float64
	Rank       int
	Highlights []string
}

// Search runs a bleve query-string search scoped to a single project,
// optionally restricted to a set of chunk types (spec §4.7's
// searchFullText(query, k, filter) with an optional type filter).
func (s *Store) Search(ctx context.Context, projectID, queryStr string, limit int, typeFilter []chunk.Type) ([]Match, error) {
	s.mu.RLock()
	idx, ok := s.indices[projectID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var q query.Query = bleve.NewQueryStringQuery(queryStr)
	if len(typeFilter) > 0 {
		typeQueries := make([]query.Query, len(typeFilter))
		for i, t := range typeFilter {
			tq := bleve.NewTermQuery(string(t))
			tq.SetField("type")
			typeQueries[i] = tq
		}
		q = bleve.NewConjunctionQuery(q, bleve.NewDisjunctionQuery(typeQueries...))
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	style := "html"
	req.Highlight = bleve.NewHighlight()
	req.Highlight.Style = &style
	req.Highlight.Fields = []string{"text"}

	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	matches := make([]Match, 0, len(result.Hits))
	for i, hit := range result.Hits {
		var highlights []string
		for _, snippets := range hit.Fragments {
			highlights = append(highlights, snippets...)
		}
		if len(highlights) > 3 {
			highlights = highlights[:3]
		}
		matches = append(matches, Match{ChunkID: hit.ID, Score: hit.Score, Rank: i + 1, Highlights: highlights})
	}
	return matches, nil
}
