package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvp-joe/docs-retriever/internal/embedclient"
	"github.com/mvp-joe/docs-retriever/internal/mcpserver"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/search"
	"github.com/mvp-joe/docs-retriever/internal/textstore"
	"github.com/mvp-joe/docs-retriever/internal/vectorstore"
)

// serveCmd starts the MCP control plane over stdio, grounded on the
// teacher's internal/cli/mcp.go launching internal/mcp/server.go.
//
// Note: the vector and text stores are currently rebuilt empty at
// startup, since there is no on-disk persistence layer yet for either
// store (see DESIGN.md); a real deployment runs `index` against the
// same process, or a future persistence layer reloads them.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP control plane over stdio",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	root, err := registryRoot()
	if err != nil {
		return exitErr(2, err)
	}
	reg, err := registry.Load(root)
	if err != nil {
		return exitErr(2, fmt.Errorf("load registry: %w", err))
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

	searcher := search.New(reg, vectorstore.New(), textstore.New(), embedclient.New(embedEndpoint, embedModel, embedDims))
	srv := mcpserver.New(reg, searcher)
	return srv.Serve(context.Background())
}
