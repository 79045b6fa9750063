package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvp-joe/docs-retriever/internal/chunker"
	"github.com/mvp-joe/docs-retriever/internal/coordinator"
	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/indexer"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

var (
	projectFlag string
	sourceFlag  string
	listFlag    bool
	dryRunFlag  bool
	resumeFlag  bool
)

// indexCmd drives ingestion for one project, grounded on the teacher's
// internal/cli/index.go (graceful cancellation via the Coordinator's
// RunWithSignalHandling, which owns the signal.Notify loop this
// command used to own directly).
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a project's sources into the hybrid vector + text store",
	Long: `index runs the ingest -> parse -> chunk -> embed -> upsert pipeline for
every source belonging to a project.

Examples:
  # List registered projects
  docs-retriever index --list

  # Index every source of a project
  docs-retriever index --project my-project

  # Index a single source within a project
  docs-retriever index --project my-project --source docs-site-1

  # Preview what would be indexed without writing to the stores
  docs-retriever index --project my-project --dry-run
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&projectFlag, "project", "", "project ID to index")
	indexCmd.Flags().StringVar(&sourceFlag, "source", "", "restrict indexing to a single source ID within the project")
	indexCmd.Flags().BoolVar(&listFlag, "list", false, "list registered projects and exit")
	indexCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "discover documents without writing to the stores")
	indexCmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume from each source's last recorded cursor")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := registryRoot()
	if err != nil {
		return exitErr(2, err)
	}
	reg, err := registry.Load(root)
	if err != nil {
		return exitErr(2, fmt.Errorf("load registry: %w", err))
	}

	if listFlag {
		for _, p := range reg.ListProjects() {
			fmt.Printf("%s\t%s\t%d source(s)\n", p.ID, p.DisplayName, len(p.SourceIDs))
		}
		return nil
	}

	if projectFlag == "" {
		return exitErr(2, fmt.Errorf("--project is required (or pass --list)"))
	}

	if dryRunFlag {
		sources, err := reg.Sources(projectFlag)
		if err != nil {
			return exitErr(2, err)
		}
		for _, s := range sources {
			if sourceFlag != "" && s.ID != sourceFlag {
				continue
			}
			fmt.Printf("would index source %s (%s)\n", s.ID, s.Kind)
		}
		return nil
	}

	embedEndpoint := viper.GetString("embed.endpoint")
	if embedEndpoint == "" {
		embedEndpoint = "http://localhost:8089"
	}
	embedModel := viper.GetString("embed.model")
	if embedModel == "" {
		embedModel = "default"
	}
	embedDims := viper.GetInt("embed.dimensions")
	if embedDims == 0 {
		embedDims = 768
	}

	idx := indexer.New(
		vectorstore.New(),
		textstore.New(),
		embedclient.New(embedEndpoint, embedModel, embedDims),
		chunker.New(512, 64),
	)

	progressCh := make(chan embedclient.Progress, 16)
	idx.ProgressCh = progressCh
	done := make(chan struct{})
	go reportEmbeddingProgress(progressCh, done)
	defer func() { close(progressCh); <-done }()

	coord := coordinator.New(reg, idx)

	if resumeFlag {
		sources, err := reg.Sources(projectFlag)
		if err != nil {
			return exitErr(2, err)
		}
		for _, s := range sources {
			if cursor, ok := coord.LoadCursor(s.ID); ok {
				fmt.Printf("resuming %s from cursor recorded %v\n", s.ID, cursor.Data)
			}
		}
	}

	ctx := context.Background()
	var result coordinator.RunResult
	if sourceFlag != "" {
		result, err = coord.RunSourceWithSignalHandling(ctx, projectFlag, sourceFlag)
	} else {
		result, err = coord.RunWithSignalHandling(ctx, projectFlag)
	}
	if err != nil {
		return exitErr(1, err)
	}

	failed := 0
	for _, s := range result.Sources {
		status := s.Status
		if s.Err != nil {
			status = fmt.Sprintf("%s: %v", s.Status, s.Err)
			failed++
		}
		fmt.Printf("%s\t%s\tdocs=%d changed=%d chunks=%d orphaned=%d\n",
			s.SourceID, status, s.Stats.DocumentsSeen, s.Stats.DocumentsChanged, s.Stats.ChunksWritten, s.Stats.ChunksOrphaned)
	}
	if failed > 0 {
		return exitErr(1, fmt.Errorf("%d source(s) failed", failed))
	}
	return nil
}

// exitErr prints err and arranges for Execute to exit with the given
// code (1 = run failure, 2 = usage/config failure), per spec §6.
func exitErr(code int, err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
	return nil
}
