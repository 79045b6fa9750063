// Package coordinator drives indexing runs across every source of a
// project, grounded on the teacher's internal/cli/index.go
// (signal.Notify-based graceful cancellation) and
// internal/indexer/watcher.go (debounce-and-cancel loop), generalized
// from one filesystem root to the registry's per-project, per-source
// model with bounded concurrency and resume cursors.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mvp-joe/docs-retriever/internal/apperrors"
	"github.com/mvp-joe/docs-retriever/internal/indexer"
	"github.com/mvp-joe/docs-retriever/internal/ingest"
	"github.com/mvp-joe/docs-retriever/internal/ingest/githubrepo"
	"github.com/mvp-joe/docs-retriever/internal/ingest/httpcrawler"
	"github.com/mvp-joe/docs-retriever/internal/ingest/localmarkdown"
	"github.com/mvp-joe/docs-retriever/internal/qualitygate"
	"github.com/mvp-joe/docs-retriever/internal/registry"
)

// qualityGated is implemented by adapters whose source kind is subject
// to the Quality Gate (currently only githubrepo.Adapter); runSource
// type-asserts against it rather than special-casing SourceKind, so
// any future gated adapter only needs to implement this method.
type qualityGated interface {
	EvaluateQuality(ctx context.Context) (qualitygate.Verdict, error)
}

// SourceState tracks one source's progress across a run, surfaced in
// the per-source lines the CLI's index command prints.
// RunID is a generated correlation ID for this run's log lines,
// following the teacher's storage layer convention of stamping a
// uuid.New() identifier onto records with no natural stable key.
type SourceState struct {
	SourceID string
	RunID    string
	Status   string // pending, running, done, failed
	Stats    indexer.Stats
	Err      error
}

// RunResult aggregates every source's outcome for one project run.
type RunResult struct {
	ProjectID string
	Sources   []SourceState
}

// Coordinator runs a project's sources with bounded concurrency and
// cooperative cancellation.
type Coordinator struct {
	Registry    *registry.Registry
	Indexer     *indexer.Indexer
	Concurrency int64
	GraceWindow time.Duration
}

// New builds a Coordinator with a default concurrency cap and grace
// window, matching the teacher's conservative worker-pool defaults.
func New(reg *registry.Registry, idx *indexer.Indexer) *Coordinator {
	return &Coordinator{Registry: reg, Indexer: idx, Concurrency: 4, GraceWindow: 10 * time.Second}
}

// RunProject indexes every source belonging to a project, one
// goroutine per source bounded by Concurrency, retrying sources whose
// failure is transient (apperrors.IsTransient) once before giving up.
func (c *Coordinator) RunProject(ctx context.Context, projectID string) (RunResult, error) {
	return c.runProject(ctx, projectID, "")
}

// RunSource indexes a single source within a project, the counterpart
// to the CLI's --source flag. sourceID must name a source already
// attached to the project.
func (c *Coordinator) RunSource(ctx context.Context, projectID, sourceID string) (RunResult, error) {
	return c.runProject(ctx, projectID, sourceID)
}

func (c *Coordinator) runProject(ctx context.Context, projectID, onlySourceID string) (RunResult, error) {
	if _, err := c.Registry.Project(projectID); err != nil {
		return RunResult{}, err
	}
	sources, err := c.Registry.Sources(projectID)
	if err != nil {
		return RunResult{}, err
	}
	if onlySourceID != "" {
		filtered := sources[:0]
		for _, src := range sources {
			if src.ID == onlySourceID {
				filtered = append(filtered, src)
			}
		}
		if len(filtered) == 0 {
			return RunResult{}, fmt.Errorf("source %q not found in project %q", onlySourceID, projectID)
		}
		sources = filtered
	}

	sem := semaphore.NewWeighted(c.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	states := make([]SourceState, len(sources))

	for i, src := range sources {
		i, src := i, src
		states[i] = SourceState{SourceID: src.ID, RunID: uuid.New().String(), Status: "pending"}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			states[i].Status, states[i].Err = "failed", err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			mu.Lock()
			states[i].Status = "running"
			runID := states[i].RunID
			mu.Unlock()

			log.Printf("coordinator: [%s] starting source %s", runID, src.ID)
			stats, runErr := c.runSource(ctx, projectID, src)
			if runErr != nil && apperrors.IsTransient(runErr) {
				log.Printf("coordinator: [%s] retrying source %s after transient error: %v", runID, src.ID, runErr)
				stats, runErr = c.runSource(ctx, projectID, src)
			}

			mu.Lock()
			defer mu.Unlock()
			states[i].Stats = stats
			if runErr != nil {
				states[i].Status, states[i].Err = "failed", runErr
			} else {
				states[i].Status = "done"
			}
		}()
	}
	wg.Wait()

	return RunResult{ProjectID: projectID, Sources: states}, nil
}

func (c *Coordinator) runSource(ctx context.Context, projectID string, src *registry.Source) (indexer.Stats, error) {
	adapter, err := buildAdapter(src)
	if err != nil {
		return indexer.Stats{}, apperrors.ConfigError("build adapter for "+src.ID, err)
	}

	if gated, ok := adapter.(qualityGated); ok {
		verdict, err := gated.EvaluateQuality(ctx)
		if err != nil {
			return indexer.Stats{}, apperrors.TransientSourceError("evaluate quality for "+src.ID, err)
		}
		if !verdict.Accepted {
			log.Printf("coordinator: source %s rejected by quality gate: %s", src.ID, verdict.RejectionReason)
			return indexer.Stats{}, nil
		}
	}

	stats, runErr := c.Indexer.Run(ctx, projectID, adapter)
	if err := c.saveCursor(src.ID, adapter.Cursor()); err != nil {
		log.Printf("coordinator: persist cursor for %s: %v", src.ID, err)
	}
	return stats, runErr
}

// cursorPath returns where a source's resume cursor is persisted,
// alongside the registry's projects/ and sources/ directories.
func (c *Coordinator) cursorPath(sourceID string) string {
	return filepath.Join(c.Registry.Root(), "cursors", sourceID+".json")
}

func (c *Coordinator) saveCursor(sourceID string, cursor ingest.ResumeCursor) error {
	path := c.cursorPath(sourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCursor reads back a previously persisted resume cursor, used by
// the CLI's --resume flag to report where a source left off. Adapters
// do not yet consume the cursor to skip re-fetching: every run still
// walks the full source, relying on the Indexer's content-hash
// comparison to skip unchanged documents cheaply. The cursor is
// recorded for forensics and future adapter-level resume support.
func (c *Coordinator) LoadCursor(sourceID string) (ingest.ResumeCursor, bool) {
	data, err := os.ReadFile(c.cursorPath(sourceID))
	if err != nil {
		return ingest.ResumeCursor{}, false
	}
	var cursor ingest.ResumeCursor
	if json.Unmarshal(data, &cursor) != nil {
		return ingest.ResumeCursor{}, false
	}
	return cursor, true
}

// buildAdapter dispatches on the registry's tagged-union Source to the
// concrete ingest.Adapter implementation for its Kind.
func buildAdapter(src *registry.Source) (ingest.Adapter, error) {
	switch src.Kind {
	case registry.SourceKindDocsSite:
		return httpcrawler.New(src.ID, src.BaseURL, src.MaxDepth, src.IncludeGlobs, src.ExcludeGlobs, time.Duration(src.RequestDelayMs)*time.Millisecond), nil
	case registry.SourceKindGitHubRepo:
		thresholds := qualitygate.Thresholds{
			MinDocScore:   src.MinDocScore,
			MinLLMScore:   src.MinLLMScore,
			RequireReadme: src.RequireReadme,
		}
		return githubrepo.New(src.ID, src.Owner, src.Repo, src.Ref, src.PathPrefix, src.TokenEnvVar, src.RepoType, src.TrustLevel, thresholds, nil), nil
	case registry.SourceKindLocalMarkdown:
		return localmarkdown.New(src.ID, src.RootDir, src.URLPrefix, nil, src.Ignore)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// RunWithSignalHandling wraps RunProject with SIGINT/SIGTERM handling:
// the first signal cancels the context, and the call returns once every
// in-flight source has observed the cancellation and finished. A second
// signal (which is logged) or the expiry of GraceWindow only ends the
// signal watcher; neither makes this call return earlier.
func (c *Coordinator) RunWithSignalHandling(parent context.Context, projectID string) (RunResult, error) {
	return c.runWithSignalHandling(parent, projectID, "")
}

// RunSourceWithSignalHandling is the --source-scoped counterpart to
// RunWithSignalHandling.
func (c *Coordinator) RunSourceWithSignalHandling(parent context.Context, projectID, sourceID string) (RunResult, error) {
	return c.runWithSignalHandling(parent, projectID, sourceID)
}

func (c *Coordinator) runWithSignalHandling(parent context.Context, projectID, onlySourceID string) (RunResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			log.Println("coordinator: interrupt received, cancelling with grace window")
			cancel()
			select {
			case <-sigChan:
				log.Println("coordinator: second interrupt, forcing exit")
			case <-time.After(c.GraceWindow):
			case <-done:
			}
		case <-done:
		}
	}()

	result, err := c.runProject(ctx, projectID, onlySourceID)
	close(done)
	return result, err
}
