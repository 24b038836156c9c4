package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/feedtrack/internal/assistant"
	"github.com/kalambet/feedtrack/internal/feedback"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Feedback  *feedback.Service
	Assistant assistant.AnswerProvider // optional; if nil, ask_assistant returns an error
	Version   string
}

// NewMCPServer creates an MCP server with the feedtrack tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"feedtrack",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("feedtrack: list, file, triage and resolve user feedback; ask the assistant for advice."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_feedback",
			mcp.WithDescription("List feedback items, optionally filtered by category, priority or status."),
			mcp.WithString("category", mcp.Description("bug, feature or general"), mcp.Enum(enumStrings(feedback.Categories)...)),
			mcp.WithString("priority", mcp.Description("low, medium or high"), mcp.Enum(enumStrings(feedback.Priorities)...)),
			mcp.WithString("status", mcp.Description("open, in-progress or resolved"), mcp.Enum(enumStrings(feedback.Statuses)...)),
		),
		mcpListFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("create_feedback",
			mcp.WithDescription("File a new feedback item. It starts in status open."),
			mcp.WithString("title", mcp.Description("Short summary"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Full description"), mcp.Required()),
			mcp.WithString("category", mcp.Description("bug, feature or general (default general)")),
			mcp.WithString("priority", mcp.Description("low, medium or high (default medium)")),
		),
		mcpCreateFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("update_feedback",
			mcp.WithDescription("Change fields of an existing feedback item. Omitted fields are left as they are."),
			mcp.WithString("id", mcp.Description("Feedback id"), mcp.Required()),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("category", mcp.Description("bug, feature or general")),
			mcp.WithString("priority", mcp.Description("low, medium or high")),
			mcp.WithString("status", mcp.Description("open, in-progress or resolved")),
		),
		mcpUpdateFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_feedback",
			mcp.WithDescription("Permanently delete a feedback item."),
			mcp.WithString("id", mcp.Description("Feedback id"), mcp.Required()),
		),
		mcpDeleteFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the AI assistant a question about managing feedback."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
		),
		mcpAskAssistant(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"feedback://all",
			"All Feedback",
			mcp.WithResourceDescription("Every feedback item as a JSON array, in creation order"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceAll(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"feedback://stats",
			"Feedback Stats",
			mcp.WithResourceDescription("Counts by category, priority and status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func mcpListFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := feedback.Filter{
			Category: feedback.Category(req.GetString("category", "")),
			Priority: feedback.Priority(req.GetString("priority", "")),
			Status:   feedback.Status(req.GetString("status", "")),
		}
		if err := f.Validate(); err != nil {
			return mcpFeedbackError(err), nil
		}

		records, err := deps.Feedback.List(ctx, f)
		if err != nil {
			return mcpFeedbackError(err), nil
		}
		return mcpJSON(records)
	}
}

func mcpCreateFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		rec, err := deps.Feedback.Create(ctx, feedback.NewRecord{
			Title:       title,
			Description: description,
			Category:    feedback.Category(req.GetString("category", "")),
			Priority:    feedback.Priority(req.GetString("priority", "")),
		})
		if err != nil {
			return mcpFeedbackError(err), nil
		}
		return mcpJSON(rec)
	}
}

func mcpUpdateFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		args := req.GetArguments()
		var patch feedback.Patch
		if v, ok := stringArg(args, "title"); ok {
			patch.Title = &v
		}
		if v, ok := stringArg(args, "description"); ok {
			patch.Description = &v
		}
		if v, ok := stringArg(args, "category"); ok {
			c := feedback.Category(v)
			patch.Category = &c
		}
		if v, ok := stringArg(args, "priority"); ok {
			p := feedback.Priority(v)
			patch.Priority = &p
		}
		if v, ok := stringArg(args, "status"); ok {
			st := feedback.Status(v)
			patch.Status = &st
		}

		rec, err := deps.Feedback.Update(ctx, id, patch)
		if err != nil {
			return mcpFeedbackError(err), nil
		}
		return mcpJSON(rec)
	}
}

func mcpDeleteFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Feedback.Delete(ctx, id); err != nil {
			return mcpFeedbackError(err), nil
		}
		return mcpText(fmt.Sprintf("Deleted feedback %s", id)), nil
	}
}

func mcpAskAssistant(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Assistant == nil {
			return mcpError("assistant not available"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		answer, err := deps.Assistant.Ask(ctx, question)
		if err != nil {
			switch {
			case errors.Is(err, assistant.ErrEmptyQuestion):
				return mcpError("question is required"), nil
			case errors.Is(err, assistant.ErrNotConfigured):
				return mcpError("AI API key not configured"), nil
			default:
				return mcpError(fmt.Sprintf("assistant failed: %v", err)), nil
			}
		}
		return mcpText(answer), nil
	}
}

func mcpResourceAll(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Feedback.List(ctx, feedback.Filter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list feedback: %w", err)
		}
		return mcpResourceJSON(req.Params.URI, records)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Feedback.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
		return mcpResourceJSON(req.Params.URI, stats)
	}
}

func mcpResourceJSON(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// stringArg returns args[key] when it is present as a string.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func mcpFeedbackError(err error) *mcp.CallToolResult {
	var verr *feedback.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcpError(verr.Msg)
	case errors.Is(err, feedback.ErrNotFound):
		return mcpError("Feedback not found")
	default:
		slog.Error("MCP feedback operation failed", "error", err)
		return mcpError("Failed to access feedback")
	}
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
