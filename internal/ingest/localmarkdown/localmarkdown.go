// Package localmarkdown reads markdown files from a local directory
// tree, synthesizing generated-docs:// URLs for content with no public
// web address (per spec §6's URL scheme). Grounded on the teacher's
// internal/indexer/discovery.go glob-based file discovery, generalized
// from a fixed code/docs split into a single include/exclude pattern
// set and wrapped in the shared ingest.Adapter interface. Watch
// reuses the debounce loop from the teacher's
// internal/indexer/watcher.go for live-reindex mode.
package localmarkdown

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
)

// Adapter walks RootDir, synthesizing URLs under URLPrefix, matching
// IncludeGlobs/ExcludeGlobs against root-relative, slash-normalized
// paths.
type Adapter struct {
	SourceID     string
	RootDir      string
	URLPrefix    string
	IncludeGlobs []string
	ExcludeGlobs []string

	mu     sync.Mutex
	cursor ingest.ResumeCursor
}

// New compiles the adapter's glob patterns eagerly so a bad pattern
// fails fast at construction rather than mid-walk.
func New(sourceID, rootDir, urlPrefix string, include, exclude []string) (*Adapter, error) {
	a := &Adapter{SourceID: sourceID, RootDir: rootDir, URLPrefix: urlPrefix, IncludeGlobs: include, ExcludeGlobs: exclude}
	for _, p := range include {
		if _, err := glob.Compile(p, '/'); err != nil {
			return nil, err
		}
	}
	for _, p := range exclude {
		if _, err := glob.Compile(p, '/'); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Adapter) compiled(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, _ := glob.Compile(p, '/')
		out = append(out, g)
	}
	return out
}

// matchesAny also tries path with a leading "/", so that a "**/" prefix
// matches files directly under RootDir as well as nested ones.
func matchesAny(path string, patterns []glob.Glob) bool {
	for _, g := range patterns {
		if g.Match(path) || g.Match("/"+path) {
			return true
		}
	}
	return false
}

// Documents walks RootDir and emits a RawDocument per matched file.
func (a *Adapter) Documents(ctx context.Context, out chan<- ingest.RawDocument, errc chan<- error) {
	include := a.compiled(a.IncludeGlobs)
	if len(include) == 0 {
		include = a.compiled([]string{"**/*.md", "**/*.markdown"})
	}
	exclude := a.compiled(a.ExcludeGlobs)

	var lastPath string
	err := filepath.Walk(a.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(a.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(rel, exclude) || !matchesAny(rel, include) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(data)

		doc := ingest.RawDocument{
			URL:         synthesizeURL(a.URLPrefix, rel),
			SourceID:    a.SourceID,
			Title:       titleFromPath(rel),
			Content:     content,
			ContentType: "markdown",
			ContentHash: chunk.HashContent(content),
		}

		select {
		case out <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}

		lastPath = rel
		a.mu.Lock()
		a.cursor = ingest.ResumeCursor{SourceID: a.SourceID, Data: map[string]string{"lastPath": lastPath}}
		a.mu.Unlock()
		return nil
	})
	if err != nil {
		errc <- err
	}
}

func (a *Adapter) Cursor() ingest.ResumeCursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Watch triggers onChange (typically a re-run of Documents through
// the Indexer) whenever files under RootDir settle after a burst of
// edits, debounced like the teacher's internal/indexer/watcher.go.
// It blocks until ctx is cancelled.
func (a *Adapter) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	err = filepath.Walk(a.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func synthesizeURL(prefix, relPath string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	return "generated-docs://" + prefix + "/" + relPath
}

func titleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "-", " ")
}
