// Package chunk defines the retrievable unit produced by the chunker
// and consumed by the vector store, text store, and hybrid searcher.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Type classifies a chunk by the structural role it plays in the
// source material, mirroring the source's own structure rather than a
// language guess.
type Type string

const (
	TypeProse          Type = "prose"
	TypeCode           Type = "code"
	TypeAPIReference   Type = "api-reference"
	TypeHeadingSection Type = "heading-section"
	TypeExample        Type = "example"
)

// Chunk is the unit indexed into both the vector store and the text
// store, and the unit returned by the hybrid searcher.
type Chunk struct {
	ID          string    `json:"chunkId"`
	DocumentID  string    `json:"documentId"`
	ProjectID   string    `json:"projectId"`
	SourceID    string    `json:"sourceId"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	Type        Type      `json:"type"`
	Text        string    `json:"text"`
	Title       string    `json:"title,omitempty"`
	HeadingPath []string  `json:"headingPath,omitempty"`
	URL         string    `json:"url"`
	Language    string    `json:"language,omitempty"`
	ContentHash string    `json:"contentHash"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	OrphanedAt  *time.Time `json:"orphanedAt,omitempty"`

	// PendingEmbedding is set when the chunk was written to the text
	// store but the vector store upsert that should accompany it
	// failed; it is excluded from dense search until a later run
	// retries the embedding successfully.
	PendingEmbedding bool `json:"pendingEmbedding,omitempty"`
}

// IsOrphaned reports whether the chunk's source document no longer
// exists but the chunk has not yet been purged (spec's orphan window).
func (c *Chunk) IsOrphaned() bool { return c.OrphanedAt != nil }

// DeriveID computes a stable chunk identity from (sourceId, url,
// chunkIndex), so re-ingesting unchanged content reuses the same ID
// rather than minting a fresh one every run.
func DeriveID(sourceID, url string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", sourceID, url, index)))
	return hex.EncodeToString(h[:])[:24]
}

// HashContent produces the content hash used for change detection
// (RawDocument.ContentHash and, by extension, chunk staleness checks).
func HashContent(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
