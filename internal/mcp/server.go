package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/rag"
	"github.com/joescharf/codelens/internal/review"
)

// Server exposes reviews and document questions as MCP tools.
type Server struct {
	reviewer *review.Orchestrator
	rag      *rag.Service
	version  string
}

// NewServer creates the MCP server wrapper. ragSvc may be nil, in which case
// the document tools report an error.
func NewServer(reviewer *review.Orchestrator, ragSvc *rag.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{reviewer: reviewer, rag: ragSvc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("codelens", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.reviewTool())
	srv.AddTool(s.supportedLanguagesTool())
	srv.AddTool(s.askTool())
	srv.AddTool(s.listDocumentsTool())
	srv.AddTool(s.addDocumentTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports err to the client without leaking internal details.
func errorResult(prefix string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", prefix, apperr.PublicMessage(err)))
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// codelens_review
func (s *Server) reviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelens_review",
		mcp.WithDescription("Review source code for syntax, security, performance, style, best-practice and comment-quality issues. Returns the aggregated review as JSON."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code to review (max 50000 characters)")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Language tag"), mcp.Enum(models.LanguageCodes()...)),
		mcp.WithString("file_type", mcp.Description("File extension, e.g. py or tsx")),
		mcp.WithString("context", mcp.Description("Optional notes about what the code is for")),
	)
	return tool, s.handleReview
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	language, err := request.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: language"), nil
	}

	result, err := s.reviewer.Review(ctx, models.AnalysisRequest{
		Code:     code,
		Language: language,
		FileType: request.GetString("file_type", ""),
		Context:  request.GetString("context", ""),
	})
	if err != nil {
		return errorResult("review failed", err), nil
	}
	return jsonResult(result)
}

// codelens_supported_languages
func (s *Server) supportedLanguagesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelens_supported_languages",
		mcp.WithDescription("List the languages accepted by codelens_review with their file extensions."),
	)
	return tool, s.handleSupportedLanguages
}

func (s *Server) handleSupportedLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(models.SupportedLanguages)
}

// codelens_ask
func (s *Server) askTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelens_ask",
		mcp.WithDescription("Answer a programming question using the uploaded documents as context."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question (max 10000 characters)")),
	)
	return tool, s.handleAsk
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	if s.rag == nil {
		return mcp.NewToolResultError("document question answering is not available"), nil
	}
	turn, err := s.rag.Answer(ctx, question)
	if err != nil {
		return errorResult("question failed", err), nil
	}
	return jsonResult(turn)
}

// codelens_list_documents
func (s *Server) listDocumentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelens_list_documents",
		mcp.WithDescription("List the documents available as question-answering context."),
	)
	return tool, s.handleListDocuments
}

func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.rag == nil {
		return mcp.NewToolResultError("document question answering is not available"), nil
	}
	docs, err := s.rag.ListDocuments(ctx)
	if err != nil {
		return errorResult("failed to list documents", err), nil
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	return jsonResult(docs)
}

// codelens_add_document
func (s *Server) addDocumentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codelens_add_document",
		mcp.WithDescription("Add a text or markdown document to the question-answering context."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name with a .txt, .md, .markdown or .rst extension")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text")),
	)
	return tool, s.handleAddDocument
}

func (s *Server) handleAddDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: filename"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}
	if s.rag == nil {
		return mcp.NewToolResultError("document question answering is not available"), nil
	}
	doc, err := s.rag.Ingest(ctx, filename, content)
	if err != nil {
		return errorResult("failed to add document", err), nil
	}
	return jsonResult(doc)
}
