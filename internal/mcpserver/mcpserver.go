// Package mcpserver exposes the documentation retrieval control plane
// over MCP, generalized from the teacher's internal/mcp/server.go
// (MCPServer struct wrapping a *server.MCPServer, stdio transport,
// SIGINT/SIGTERM shutdown) and internal/mcp/tool.go's composable
// AddXTool registration pattern: one AddXTool function per tool,
// argument parsing from the generic arguments map, JSON-text results.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/docs-retriever/internal/chunk"
	"github.com/mvp-joe/docs-retriever/internal/registry"
	"github.com/mvp-joe/docs-retriever/internal/search"
)

// Server wraps the mcp-go server with the registry and searcher it
// delegates tool calls to.
type Server struct {
	mcp      *server.MCPServer
	registry *registry.Registry
	searcher *search.Searcher
}

// New builds a Server and registers every control-plane tool.
func New(reg *registry.Registry, searcher *search.Searcher) *Server {
	s := &Server{
		mcp:      server.NewMCPServer("docs-retriever-mcp", "1.0.0", server.WithToolCapabilities(true)),
		registry: reg,
		searcher: searcher,
	}
	s.addListProjectsTool()
	s.addSearchDocumentationTool()
	s.addGetCodeExamplesTool()
	s.addGetAPISignatureTool()
	return s
}

// Serve runs the server over stdio until SIGINT/SIGTERM, matching the
// teacher's graceful-shutdown convention.
func (s *Server) Serve(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("mcpserver: shutdown signal received")
		os.Exit(0)
	}()
	return server.ServeStdio(s.mcp)
}

func (s *Server) addListProjectsTool() {
	tool := mcp.NewTool(
		"list_projects",
		mcp.WithDescription("List every project registered with the documentation retriever, with their display names and source counts."),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects := s.registry.ListProjects()
		type projectSummary struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			SourceCount int    `json:"sourceCount"`
		}
		out := make([]projectSummary, len(projects))
		for i, p := range projects {
			out[i] = projectSummary{ID: p.ID, DisplayName: p.DisplayName, SourceCount: len(p.SourceIDs)}
		}
		return jsonResult(out)
	})
}

func (s *Server) addSearchDocumentationTool() {
	tool := mcp.NewTool(
		"search_documentation",
		mcp.WithDescription("Hybrid (vector + keyword) search over a project's indexed documentation, fused by reciprocal rank fusion."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("The project to search")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or keyword search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return (default 10)")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		projectID, _ := args["project_id"].(string)
		query, _ := args["query"].(string)
		if projectID == "" || query == "" {
			return mcp.NewToolResultError("project_id and query are required"), nil
		}
		limit := 10
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}

		resp, err := s.searcher.Search(ctx, projectID, query, search.Options{K: limit})
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResult(resp)
	})
}

func (s *Server) addGetCodeExamplesTool() {
	tool := mcp.NewTool(
		"get_code_examples",
		mcp.WithDescription("Search a project's documentation for code-block chunks relevant to a query, filtering out prose results."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("The project to search")),
		mcp.WithString("query", mcp.Required(), mcp.Description("What the code example should demonstrate")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return (default 5)")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		projectID, _ := args["project_id"].(string)
		query, _ := args["query"].(string)
		if projectID == "" || query == "" {
			return mcp.NewToolResultError("project_id and query are required"), nil
		}
		limit := 5
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}

		resp, err := s.searcher.Search(ctx, projectID, query, search.Options{
			K:          limit,
			TypeFilter: []chunk.Type{chunk.TypeCode, chunk.TypeExample},
		})
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResult(resp.Results)
	})
}

func (s *Server) addGetAPISignatureTool() {
	tool := mcp.NewTool(
		"get_api_signature",
		mcp.WithDescription("Look up the documentation chunk whose title or heading path most closely names a given API symbol."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("The project to search")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("The function, type, or method name to look up")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		projectID, _ := args["project_id"].(string)
		symbol, _ := args["symbol"].(string)
		if projectID == "" || symbol == "" {
			return mcp.NewToolResultError("project_id and symbol are required"), nil
		}

		resp, err := s.searcher.Search(ctx, projectID, symbol, search.Options{
			K:          5,
			TypeFilter: []chunk.Type{chunk.TypeAPIReference},
		})
		if err != nil {
			return nil, MapError(err)
		}
		if len(resp.Results) == 0 {
			return mcp.NewToolResultText("no matching signature found"), nil
		}
		return jsonResult(resp.Results[0])
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
