// Package httpcrawler crawls a docs_site source breadth-first,
// bounded by MaxDepth and a worker pool, matching the spec's
// include/exclude glob filtering and per-source request delay. No
// pack repo crawls HTML directly, so the worker-pool shape is grounded
// on golang.org/x/sync/semaphore (an indirect dependency shared by the
// teacher and several pack repos) instead of a bespoke channel
// pipeline, and link discovery uses golang.org/x/net/html like
// internal/docparse/htmlparser.
package httpcrawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
)

// Renderer optionally executes client-side rendering before a page is
// read. The default NoopRenderer passes the fetched HTML through
// unchanged; no pack repo embeds a headless browser, so a real
// JS-rendering implementation is left as a pluggable extension point.
// New always installs NoopRenderer; the registry's UseBrowser flag is
// not read when a crawler is built.
type Renderer interface {
	Render(ctx context.Context, rawHTML string) (string, error)
}

type NoopRenderer struct{}

func (NoopRenderer) Render(_ context.Context, rawHTML string) (string, error) { return rawHTML, nil }

// Adapter breadth-first crawls a docs site starting at BaseURL.
type Adapter struct {
	SourceID     string
	BaseURL      string
	MaxDepth     int
	IncludeGlobs []string
	ExcludeGlobs []string
	RequestDelay time.Duration
	Concurrency  int64
	Renderer     Renderer
	HTTPClient   *http.Client

	mu     sync.Mutex
	cursor ingest.ResumeCursor
}

// New builds an Adapter with sensible defaults for concurrency and the
// no-op renderer.
func New(sourceID, baseURL string, maxDepth int, include, exclude []string, requestDelay time.Duration) *Adapter {
	return &Adapter{
		SourceID:     sourceID,
		BaseURL:      baseURL,
		MaxDepth:     maxDepth,
		IncludeGlobs: include,
		ExcludeGlobs: exclude,
		RequestDelay: requestDelay,
		Concurrency:  4,
		Renderer:     NoopRenderer{},
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

type frontierEntry struct {
	url   string
	depth int
}

// Documents performs the breadth-first crawl, bounded by a semaphore
// so at most Concurrency fetches run at once.
func (a *Adapter) Documents(ctx context.Context, out chan<- ingest.RawDocument, errc chan<- error) {
	base, err := url.Parse(a.BaseURL)
	if err != nil {
		errc <- fmt.Errorf("invalid base url: %w", err)
		return
	}

	include := compile(a.IncludeGlobs)
	exclude := compile(a.ExcludeGlobs)

	visited := sync.Map{}
	sem := semaphore.NewWeighted(a.Concurrency)

	level := []frontierEntry{{url: a.BaseURL, depth: 0}}

	for len(level) > 0 {
		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}

		var wg sync.WaitGroup
		var nextMu sync.Mutex
		var next []frontierEntry

		for _, entry := range level {
			if _, seen := visited.LoadOrStore(entry.url, true); seen {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				errc <- err
				return
			}

			wg.Add(1)
			go func(entry frontierEntry) {
				defer wg.Done()
				defer sem.Release(1)

				if a.RequestDelay > 0 {
					time.Sleep(a.RequestDelay)
				}

				rawHTML, links, fetchErr := a.fetch(ctx, entry.url, base)
				if fetchErr != nil {
					errc <- fetchErr
					return
				}

				rel := strings.TrimPrefix(entry.url, base.String())
				if matchesAny(rel, exclude) || (len(include) > 0 && !matchesAny(rel, include)) {
					return
				}

				rendered, renderErr := a.Renderer.Render(ctx, rawHTML)
				if renderErr != nil {
					errc <- renderErr
					return
				}

				doc := ingest.RawDocument{
					URL:         entry.url,
					SourceID:    a.SourceID,
					Content:     rendered,
					ContentType: "html",
					ContentHash: chunk.HashContent(rendered),
				}
				select {
				case out <- doc:
				case <-ctx.Done():
					return
				}

				a.mu.Lock()
				a.cursor = ingest.ResumeCursor{SourceID: a.SourceID, Data: map[string]string{"lastURL": entry.url}}
				a.mu.Unlock()

				if entry.depth < a.MaxDepth {
					nextMu.Lock()
					for _, l := range links {
						next = append(next, frontierEntry{url: l, depth: entry.depth + 1})
					}
					nextMu.Unlock()
				}
			}(entry)
		}
		wg.Wait()
		level = next
	}
}

func (a *Adapter) fetch(ctx context.Context, target string, base *url.URL) (string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", target, err)
	}

	var sb strings.Builder
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					if abs := resolve(base, attr.Val); abs != "" {
						links = append(links, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	html.Render(&sb, doc)

	return sb.String(), links, nil
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Host != base.Host {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func compile(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if g, err := glob.Compile(p, '/'); err == nil {
			out = append(out, g)
		}
	}
	return out
}

func matchesAny(path string, patterns []glob.Glob) bool {
	for _, g := range patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (a *Adapter) Cursor() ingest.ResumeCursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}
