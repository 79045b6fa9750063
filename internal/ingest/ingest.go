// Package ingest defines the common Source Adapter surface (C6):
// every adapter yields RawDocuments and exposes a resumable cursor, no
// matter what kind of source it reads from.
package ingest

import (
	"context"
	"time"
)

// RawDocument is one fetched document before parsing/chunking.
type RawDocument struct {
	URL         string
	SourceID    string
	Title       string
	Content     string // raw markdown or HTML, adapter-dependent
	ContentType string // "markdown" | "html"
	ContentHash string
	FetchedAt   time.Time
}

// ResumeCursor is an opaque, adapter-specific position that lets a
// Coordinator resume an interrupted run without re-fetching everything.
type ResumeCursor struct {
	SourceID string
	Data     map[string]string
}

// Adapter yields RawDocuments for one configured Source. Implementations
// must respect ctx cancellation promptly — crawls and API pagination
// can run long.
type Adapter interface {
	// Documents streams RawDocuments, sending to out until the source
	// is exhausted, ctx is canceled, or an error occurs (sent on errc).
	Documents(ctx context.Context, out chan<- RawDocument, errc chan<- error)

	// Cursor returns the adapter's current resume position.
	Cursor() ResumeCursor
}
