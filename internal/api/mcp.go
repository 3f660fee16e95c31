package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/supportpilot/internal/answer"
	"github.com/kalambet/supportpilot/internal/ingest"
	"github.com/kalambet/supportpilot/internal/retrieval"
	"github.com/kalambet/supportpilot/internal/ticket"
)

// NewMCPServer creates an MCP server exposing the classification and
// retrieval engines as tools.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	if deps.TopK <= 0 {
		deps.TopK = answer.DefaultTopK
	}

	s := server.NewMCPServer(
		"supportpilot",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("supportpilot classifies customer support tickets and answers them from indexed product documentation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("classify_ticket",
			mcp.WithDescription("Classify a support ticket by topic, sentiment and priority."),
			mcp.WithString("title", mcp.Description("Ticket title")),
			mcp.WithString("description", mcp.Description("Ticket body")),
			mcp.WithBoolean("save", mcp.Description("Store the classified ticket in the history")),
		),
		mcpClassifyTicket(deps),
	)

	s.AddTool(
		mcp.NewTool("search_docs",
			mcp.WithDescription("Search the indexed documentation and return the most similar pages."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of results (default 3)")),
		),
		mcpSearchDocs(deps),
	)

	s.AddTool(
		mcp.NewTool("answer_question",
			mcp.WithDescription("Answer a question using only the indexed documentation, citing source URLs."),
			mcp.WithString("query", mcp.Description("The customer's question"), mcp.Required()),
			mcp.WithString("topic", mcp.Description("Ticket topic, e.g. SSO or How-to")),
		),
		mcpAnswerQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("triage_ticket",
			mcp.WithDescription("Classify a ticket, then answer it from the documentation or report which team it was routed to."),
			mcp.WithString("title", mcp.Description("Ticket title")),
			mcp.WithString("description", mcp.Description("Ticket body")),
		),
		mcpTriageTicket(deps),
	)

	s.AddTool(
		mcp.NewTool("build_knowledge",
			mcp.WithDescription("Scrape documentation seeds and add the pages to the search index."),
			mcp.WithString("seed_url", mcp.Description("Seed URL (default: configured seeds)")),
			mcp.WithNumber("max_pages", mcp.Description("Pages to scrape from the seed (default 5)")),
		),
		mcpBuildKnowledge(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"kb://documents",
			"Indexed Documents",
			mcp.WithResourceDescription("URL and title of every page in the documentation index"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocuments(deps),
	)

	if deps.Store != nil {
		s.AddResource(
			mcp.NewResource(
				"tickets://stats",
				"Ticket Statistics",
				mcp.WithResourceDescription("Counts of stored tickets per topic, sentiment and priority"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceStats(deps),
		)
	}

	return s
}

func mcpClassifyTicket(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := req.GetString("title", "")
		description := req.GetString("description", "")

		c := deps.Classifier.Classify(ctx, title, description)

		if req.GetBool("save", false) {
			if deps.Store == nil {
				return mcpError("ticket history is not configured"), nil
			}
			rec := ticket.Classified{
				Ticket: ticket.Ticket{
					ID:          uuid.New().String(),
					Title:       title,
					Description: description,
					CreatedAt:   time.Now().UTC(),
				},
				Classification: c,
			}
			if err := deps.Store.SaveClassifiedTickets([]ticket.Classified{rec}); err != nil {
				return mcpError(fmt.Sprintf("classified but failed to save: %v", err)), nil
			}
		}

		return mcpJSON(c)
	}
}

func mcpSearchDocs(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		results := deps.Retriever.Search(ctx, query, clampTopK(req.GetInt("top_k", 0), deps.TopK))
		if len(results) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(results)
	}
}

func mcpAnswerQuestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		return mcpJSON(deps.Answerer.Answer(ctx, query, req.GetString("topic", "")))
	}
}

func mcpTriageTicket(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t := ticket.Ticket{
			Title:       req.GetString("title", ""),
			Description: req.GetString("description", ""),
			CreatedAt:   time.Now().UTC(),
		}
		return mcpJSON(deps.Triage.Resolve(ctx, t))
	}
}

func mcpBuildKnowledge(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seeds := deps.Seeds
		if u := strings.TrimSpace(req.GetString("seed_url", "")); u != "" {
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				return mcpError("seed_url must be http or https"), nil
			}
			seeds = []ingest.Seed{{URL: u, MaxPages: req.GetInt("max_pages", 0)}}
		}
		if len(seeds) == 0 {
			return mcpError("no seed_url given and no seeds configured"), nil
		}

		return mcpJSON(deps.Builder.Build(ctx, seeds))
	}
}

func mcpResourceDocuments(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs := deps.Retriever.Documents()
		summaries := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			summaries[i] = documentSummary(d)
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceStats(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.Stats()
		if err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func documentSummary(r retrieval.Record) DocumentSummary {
	return DocumentSummary{URL: r.URL, Title: r.Title, Chars: len([]rune(r.Content))}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
