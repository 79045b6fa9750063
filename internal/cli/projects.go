package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/docs-retriever/internal/registry"
)

// projectsCmd inspects the registry without running any indexing,
// splitting the read-only --list behavior index.go also exposes into
// its own subcommand per the CLI surface's three-way split
// (index / serve / projects).
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List registered projects and their sources",
	RunE:  runProjects,
}

var projectsSourceID string

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.Flags().StringVar(&projectsSourceID, "project", "", "show sources for a single project")
}

func runProjects(cmd *cobra.Command, args []string) error {
	root, err := registryRoot()
	if err != nil {
		return exitErr(2, err)
	}
	reg, err := registry.Load(root)
	if err != nil {
		return exitErr(2, fmt.Errorf("load registry: %w", err))
	}

	if projectsSourceID != "" {
		sources, err := reg.Sources(projectsSourceID)
		if err != nil {
			return exitErr(1, err)
		}
		for _, s := range sources {
			fmt.Printf("%s\t%s\n", s.ID, s.Kind)
		}
		return nil
	}

	for _, p := range reg.ListProjects() {
		fmt.Printf("%s\t%s\t%d source(s)\n", p.ID, p.DisplayName, len(p.SourceIDs))
	}
	return nil
}
