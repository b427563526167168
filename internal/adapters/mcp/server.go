// Package mcpadapter exposes the question pipeline and the annual report as
// MCP tools over stdio.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/club-events-assistant/internal/core/ports"
	"github.com/kirillkom/club-events-assistant/internal/core/usecase"
)

const (
	serverName    = "club-events-assistant"
	serverVersion = "1.0.0"

	toolAsk    = "ask_club_events"
	toolReport = "annual_report"
)

type Server struct {
	answerer ports.QuestionAnswerer
	reports  ports.ReportBuilder
	logger   *slog.Logger
	now      func() time.Time
}

func NewServer(answerer ports.QuestionAnswerer, reports ports.ReportBuilder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{answerer: answerer, reports: reports, logger: logger, now: time.Now}
}

// MCPServer builds the tool registry.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Answers questions about club events and renders yearly activity reports."),
	)

	srv.AddTool(
		mcp.NewTool(toolAsk,
			mcp.WithDescription("Answer a natural-language question about club events: schedules, venues, coordinators, counts and summaries."),
			mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		),
		s.handleAsk,
	)
	srv.AddTool(
		mcp.NewTool(toolReport,
			mcp.WithDescription("Render the markdown annual activity report for a year."),
			mcp.WithNumber("year", mcp.Description("Four digit year; defaults to the current year")),
		),
		s.handleReport,
	)
	return srv
}

// ServeStdio blocks until stdin closes or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start := time.Now()
	answer := s.answerer.Answer(ctx, question)
	s.logger.Info("mcp_tool_called", "tool", toolAsk, "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) handleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year := req.GetInt("year", s.now().Year())
	if year < 1900 || year > 2999 {
		return mcp.NewToolResultError(fmt.Sprintf("year %d is out of range", year)), nil
	}

	report, err := s.reports.AnnualReport(ctx, year)
	if err != nil {
		s.logger.Error("mcp_tool_failed", "tool", toolReport, "year", year, "error", err.Error())
		return mcp.NewToolResultError("the report could not be generated right now"), nil
	}
	s.logger.Info("mcp_tool_called", "tool", toolReport, "year", year, "events", report.Total())
	return mcp.NewToolResultText(usecase.RenderAnnualReport(report)), nil
}
