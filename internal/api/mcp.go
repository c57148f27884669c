package api

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/reconcile"
)

const recentHistoryLimit = 10

// NewMCPServer creates an MCP server exposing the tone tools and the
// current profile.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"tonegate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tonegate rewrites and checks text against the organization's communication tone profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("convert_tone",
			mcp.WithDescription("Rewrite text into direct, gentle and neutral variants that follow the tone profile."),
			mcp.WithString("text", mcp.Description("Text to rewrite (10 to 2000 characters)"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Document kind: general, report, meeting-minutes, email, announcement, message, education")),
			mcp.WithNumber(profile.OverrideFormality, mcp.Description("Session formality override, 0 to 10")),
			mcp.WithNumber(profile.OverrideFriendliness, mcp.Description("Session friendliness override, 0 to 10")),
			mcp.WithNumber(profile.OverrideEmotion, mcp.Description("Session emotion override, 0 to 10")),
			mcp.WithNumber(profile.OverrideDirectness, mcp.Description("Session directness override, 0 to 10")),
		),
		mcpConvertTone(deps),
	)

	s.AddTool(
		mcp.NewTool("check_grammar",
			mcp.WithDescription("Analyze grammar and register of a text against the knowledge base."),
			mcp.WithString("text", mcp.Description("Text to analyze"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Domain: general, business, academic, social, personal")),
		),
		mcpRAG(deps, gateway.CapRAGAnalyzeGrammar, "text"),
	)

	s.AddTool(
		mcp.NewTool("suggest_expressions",
			mcp.WithDescription("Suggest expressions that fit the tone profile for a situation."),
			mcp.WithString("query", mcp.Description("Situation or phrase to find expressions for"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Domain: general, business, academic, social, personal")),
		),
		mcpRAG(deps, gateway.CapRAGSuggestExpressions, "query"),
	)

	s.AddTool(
		mcp.NewTool("ask_knowledge_base",
			mcp.WithDescription("Ask a question answered from the organization's ingested documents."),
			mcp.WithString("query", mcp.Description("Question"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Domain: general, business, academic, social, personal")),
			mcp.WithBoolean("use_styles", mcp.Description("Answer in the profile's style")),
		),
		mcpRAG(deps, gateway.CapRAGAsk, "query"),
	)

	s.AddTool(
		mcp.NewTool("analyze_quality",
			mcp.WithDescription("Check a text's quality against the tone profile."),
			mcp.WithString("text", mcp.Description("Text to analyze"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Document kind")),
		),
		mcpAnalyzeQuality(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tone://profile",
			"Tone Profile",
			mcp.WithResourceDescription("Current tone profile with descriptors, constraints and summary"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tone://history",
			"Recent Conversions",
			mcp.WithResourceDescription("Last 10 successful conversions (inputs truncated)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

// sessionOverrides collects the numeric override arguments that were sent.
func sessionOverrides(req mcp.CallToolRequest) map[string]float64 {
	args := req.GetArguments()
	out := make(map[string]float64)
	for _, name := range []string{
		profile.OverrideFormality, profile.OverrideFriendliness,
		profile.OverrideEmotion, profile.OverrideDirectness,
	} {
		if _, ok := args[name]; ok {
			out[name] = profile.Clamp(args[name])
		}
	}
	return out
}

// mcpResult renders a dispatch outcome as tool output. Backend failures are
// tool errors carrying the backend's message.
func mcpResult(v any, res reconcile.Result, err error) *mcp.CallToolResult {
	if err != nil {
		return mcpError(err.Error())
	}
	if !res.OK {
		return mcpError(fmt.Sprintf("%s: %s", res.Failure.Kind, res.Failure.Message))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpConvertTone(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		p, err := currentProfile(ctx, deps)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}

		variants, res, err := deps.Router.Convert(ctx, gateway.ConvertRequest{
			Text:    text,
			Profile: p.WithSession(sessionOverrides(req)),
			Context: gateway.ConversionContext(req.GetString("context", "")),
		})
		return mcpResult(variants, res, err), nil
	}
}

func mcpRAG(deps Deps, kind gateway.Capability, field string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString(field)
		if err != nil {
			return mcpError(field + " is required"), nil
		}

		p, err := currentProfile(ctx, deps)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}

		res, err := deps.Router.Dispatch(ctx, gateway.RAGRequest{
			Kind:      kind,
			Query:     query,
			Context:   gateway.RAGContext(req.GetString("context", "")),
			UseStyles: req.GetBool("use_styles", false),
			Profile:   p,
		})
		return mcpResult(res.Value, res, err), nil
	}
}

func mcpAnalyzeQuality(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		p, err := currentProfile(ctx, deps)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}

		report, res, err := deps.Router.AnalyzeQuality(ctx, gateway.QualityRequest{
			Text:    text,
			Profile: p,
			Context: gateway.ConversionContext(req.GetString("context", "")),
		})
		if err == nil && res.OK {
			return mcpText(string(report.Findings)), nil
		}
		return mcpResult(nil, res, err), nil
	}
}

func mcpResourceProfile(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := currentProfile(ctx, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(NewProfileView(p))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
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

func mcpResourceHistory(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		convs, err := deps.Store.ListConversions(recentHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversions: %w", err)
		}

		entries := make([]HistoryEntry, 0, len(convs))
		for _, c := range convs {
			e := NewHistoryEntry(c)
			if utf8.RuneCountInString(e.InputText) > 200 {
				e.InputText = string([]rune(e.InputText)[:200]) + "..."
			}
			entries = append(entries, e)
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
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
