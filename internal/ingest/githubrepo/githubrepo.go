// Package githubrepo fetches markdown documentation from a GitHub
// repository tree. Grounded on ferg-cod3s-conexus's
// internal/connectors/github/github.go: oauth2.StaticTokenSource +
// go-github client construction, rate-limit tracking and
// WaitForRateLimit's sleep-until-reset behavior. Pagination here walks
// the git tree recursively rather than issues/PRs, since this adapter
// reads repository content, not repository activity.
package githubrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/mvp-joe/docs-retriever/internal/qualitygate"
	"github.com/mvp-joe/docs-retriever/internal/registry"
)

// Adapter reads markdown files from one GitHub repository ref.
type Adapter struct {
	SourceID   string
	Owner      string
	Repo       string
	Ref        string
	PathPrefix string

	RepoType   registry.RepoType
	TrustLevel registry.TrustLevel
	Thresholds qualitygate.Thresholds
	Scorer     qualitygate.RelevanceScorer

	client *github.Client

	rateLimitMu sync.RWMutex
	remaining   int
	resetAt     time.Time

	cursorMu sync.Mutex
	cursor   ingest.ResumeCursor
}

// New builds an adapter authenticated via the token named by
// tokenEnvVar (empty means unauthenticated, rate-limited to 60 req/hr).
// thresholds gates whether EvaluateQuality accepts this repository
// before the Coordinator indexes it; scorer is the external LLM
// relevance evaluator and may be nil.
func New(sourceID, owner, repo, ref, pathPrefix, tokenEnvVar string, repoType registry.RepoType, trustLevel registry.TrustLevel, thresholds qualitygate.Thresholds, scorer qualitygate.RelevanceScorer) *Adapter {
	var httpClient = oauth2.NewClient(context.Background(), nil)
	if tokenEnvVar != "" {
		if token := os.Getenv(tokenEnvVar); token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
			httpClient = oauth2.NewClient(context.Background(), ts)
		}
	}
	return &Adapter{
		SourceID:   sourceID,
		Owner:      owner,
		Repo:       repo,
		Ref:        ref,
		PathPrefix: pathPrefix,
		RepoType:   repoType,
		TrustLevel: trustLevel,
		Thresholds: thresholds,
		Scorer:     scorer,
		client:     github.NewClient(httpClient),
	}
}

// WaitForRateLimit blocks until the rate limit window resets if fewer
// than 10 requests remain, mirroring the teacher's buffer-and-sleep
// pattern rather than failing the run outright.
func (a *Adapter) WaitForRateLimit(ctx context.Context) error {
	a.rateLimitMu.RLock()
	remaining, reset := a.remaining, a.resetAt
	a.rateLimitMu.RUnlock()

	if reset.IsZero() || remaining >= 10 {
		return nil
	}
	wait := time.Until(reset)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (a *Adapter) recordRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}
	a.rateLimitMu.Lock()
	a.remaining = resp.Rate.Remaining
	a.resetAt = resp.Rate.Reset.Time
	a.rateLimitMu.Unlock()
}

// EvaluateQuality lists the repository tree once and scores it against
// the Quality Gate (spec §4.2), without fetching every file's content.
// The Coordinator calls this before Documents for github_repo sources
// and skips ingestion entirely when the verdict rejects the repo.
func (a *Adapter) EvaluateQuality(ctx context.Context) (qualitygate.Verdict, error) {
	if err := a.WaitForRateLimit(ctx); err != nil {
		return qualitygate.Verdict{}, err
	}

	tree, resp, err := a.client.Git.GetTree(ctx, a.Owner, a.Repo, a.Ref, true)
	a.recordRateLimit(resp)
	if err != nil {
		return qualitygate.Verdict{}, fmt.Errorf("get tree %s/%s@%s: %w", a.Owner, a.Repo, a.Ref, err)
	}

	var paths []string
	var readmePath string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		paths = append(paths, entry.GetPath())
		if readmePath == "" && strings.EqualFold(filepath.Base(entry.GetPath()), "README.md") {
			readmePath = entry.GetPath()
		}
	}

	signals := qualitygate.Signals{FilePaths: paths}
	var readme string
	if readmePath != "" {
		if err := a.WaitForRateLimit(ctx); err != nil {
			return qualitygate.Verdict{}, err
		}
		fileContent, _, resp, err := a.client.Repositories.GetContents(ctx, a.Owner, a.Repo, readmePath, &github.RepositoryContentGetOptions{Ref: a.Ref})
		a.recordRateLimit(resp)
		if err == nil {
			if text, decodeErr := fileContent.GetContent(); decodeErr == nil {
				readme = text
				signals.HasReadme = true
				signals.ReadmeWords = len(strings.Fields(text))
			}
		}
	}

	return qualitygate.Evaluate(signals, readme, a.Scorer, a.Thresholds)
}

// Documents lists the repository tree recursively and fetches the raw
// content of every markdown file under PathPrefix.
func (a *Adapter) Documents(ctx context.Context, out chan<- ingest.RawDocument, errc chan<- error) {
	if err := a.WaitForRateLimit(ctx); err != nil {
		errc <- err
		return
	}

	tree, resp, err := a.client.Git.GetTree(ctx, a.Owner, a.Repo, a.Ref, true)
	a.recordRateLimit(resp)
	if err != nil {
		errc <- fmt.Errorf("get tree %s/%s@%s: %w", a.Owner, a.Repo, a.Ref, err)
		return
	}

	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !strings.HasSuffix(entry.GetPath(), ".md") {
			continue
		}
		if a.PathPrefix != "" && !strings.HasPrefix(entry.GetPath(), a.PathPrefix) {
			continue
		}

		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}

		if err := a.WaitForRateLimit(ctx); err != nil {
			errc <- err
			return
		}

		fileContent, _, resp, err := a.client.Repositories.GetContents(ctx, a.Owner, a.Repo, entry.GetPath(), &github.RepositoryContentGetOptions{Ref: a.Ref})
		a.recordRateLimit(resp)
		if err != nil {
			errc <- fmt.Errorf("fetch %s: %w", entry.GetPath(), err)
			continue
		}
		text, err := fileContent.GetContent()
		if err != nil {
			errc <- fmt.Errorf("decode %s: %w", entry.GetPath(), err)
			continue
		}
		doc := ingest.RawDocument{
			URL:         fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", a.Owner, a.Repo, a.Ref, entry.GetPath()),
			SourceID:    a.SourceID,
			Title:       entry.GetPath(),
			Content:     text,
			ContentType: "markdown",
			ContentHash: chunk.HashContent(text),
		}

		select {
		case out <- doc:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}

		a.cursorMu.Lock()
		a.cursor = ingest.ResumeCursor{SourceID: a.SourceID, Data: map[string]string{"lastPath": entry.GetPath()}}
		a.cursorMu.Unlock()
	}
}

func (a *Adapter) Cursor() ingest.ResumeCursor {
	a.cursorMu.Lock()
	defer a.cursorMu.Unlock()
	return a.cursor
}
