package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ragchat/internal/collection"
	"ragchat/internal/domain"
	"ragchat/internal/retrieval"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing collection search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, 0)
	if err != nil {
		return err
	}
	defer a.close()

	s := mcpserver.NewMCPServer("ragchat", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(listCollectionsTool(), makeListCollectionsHandler(a.manager, cfg.User))
	s.AddTool(searchCollectionTool(), makeSearchHandler(a.manager, a.pipeline, cfg.User, cfg.RAG.NumDocs))
	s.AddTool(collectionInfoTool(), makeInfoHandler(a.manager, cfg.User))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func listCollectionsTool() mcp.Tool {
	return mcp.NewTool("list_collections",
		mcp.WithDescription("List the document collections available to the configured user: their own private collections and all public ones."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func searchCollectionTool() mcp.Tool {
	return mcp.NewTool("search_collection",
		mcp.WithDescription("Semantically search a document collection. Returns the most relevant passages with their source file and position."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Collection name or id, as returned by list_collections"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of passages to return (default from configuration)"),
		),
	)
}

func collectionInfoTool() mcp.Tool {
	return mcp.NewTool("collection_info",
		mcp.WithDescription("Get a collection's embedding model, chunk count and the files ingested into it."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Collection name or id, as returned by list_collections"),
		),
	)
}

// --- Handler factories ---

func makeListCollectionsHandler(m *collection.Manager, user string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		l, err := m.List(user)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list collections failed: %v", err)), nil
		}
		var sb strings.Builder
		writeCollectionList(&sb, "Your collections", l.User)
		writeCollectionList(&sb, "Public collections", l.Common)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeSearchHandler(m *collection.Manager, p *retrieval.Pipeline, user string, defaultK int) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref := req.GetString("collection", "")
		query := req.GetString("query", "")
		if ref == "" || query == "" {
			return mcp.NewToolResultError("collection and query are required"), nil
		}
		k := req.GetInt("k", defaultK)
		if k <= 0 {
			k = defaultK
		}

		h, err := m.Open(ctx, collectionID(ref), user)
		if err != nil {
			return collectionError(ref, err), nil
		}
		passages, err := p.Retrieve(ctx, query, h, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatPassages(query, passages)), nil
	}
}

func makeInfoHandler(m *collection.Manager, user string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref := req.GetString("collection", "")
		if ref == "" {
			return mcp.NewToolResultError("collection is required"), nil
		}
		h, err := m.Open(ctx, collectionID(ref), user)
		if err != nil {
			return collectionError(ref, err), nil
		}
		info, err := h.Info()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read collection failed: %v", err)), nil
		}

		c := info.Collection
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n**Id:** %s  \n**Visibility:** %s  \n**Model:** %s  \n**Chunks:** %d\n\n",
			c.Name, c.HashedName, c.Visibility, c.EmbeddingModel, info.Chunks)
		fmt.Fprintf(&sb, "### Files (%d)\n\n", len(info.Files))
		for _, f := range info.Files {
			fmt.Fprintf(&sb, "- **%s** (%d chunks, %s)\n", f.Name, f.Chunks, f.IndexedAt.UTC().Format(time.RFC3339))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func collectionError(ref string, err error) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("collection %q not found, call list_collections to see available collections", ref))
	}
	return mcp.NewToolResultError(fmt.Sprintf("open collection failed: %v", err))
}

func writeCollectionList(sb *strings.Builder, title string, cs []domain.Collection) {
	fmt.Fprintf(sb, "## %s (%d)\n\n", title, len(cs))
	for _, c := range cs {
		fmt.Fprintf(sb, "- **%s** (id %s, model %s)\n", c.Name, c.HashedName, c.EmbeddingModel)
	}
	sb.WriteString("\n")
}

func formatPassages(query string, passages []domain.Passage) string {
	if len(passages) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d passages)\n\n", query, len(passages))
	for i, p := range passages {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, p.SourceFile)
		if p.Position != "" {
			fmt.Fprintf(&sb, "**Position:** %s  \n", p.Position)
		}
		fmt.Fprintf(&sb, "**Score:** %.3f\n\n%s\n\n", p.Score, p.Content)
	}
	return sb.String()
}
