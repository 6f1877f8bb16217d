package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/filewise/filewise/internal/feedback"
	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/pipeline"
	"github.com/filewise/filewise/internal/store"
)

// Server wraps the filewise pipeline and exposes it as MCP tools.
type Server struct {
	store     store.Store
	processor *pipeline.Processor
	batcher   *pipeline.Batcher
	resumer   *pipeline.Resumer
	tracker   *feedback.Tracker
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, proc *pipeline.Processor) *Server {
	batcher := pipeline.NewBatcher(s, proc, nil)
	return &Server{
		store:     s,
		processor: proc,
		batcher:   batcher,
		resumer:   pipeline.NewResumer(s, batcher),
		tracker:   feedback.NewTracker(s),
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("filewise", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.startBatchTool())
	srv.AddTool(s.resumeBatchTool())
	srv.AddTool(s.batchStatusTool())
	srv.AddTool(s.regenerateTool())
	srv.AddTool(s.recordFeedbackTool())
	srv.AddTool(s.effectivenessTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// filewise_start_batch
func (s *Server) startBatchTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_start_batch",
		mcp.WithDescription("Process a batch of files: each file is categorized and given a name suggestion by the AI provider. Blocks until the batch finishes and returns a JSON summary with succeeded/failed counts."),
		mcp.WithString("paths", mcp.Required(), mcp.Description("Newline-separated absolute file paths to process")),
		mcp.WithNumber("concurrency", mcp.Description("How many files to process in parallel (default 3)")),
	)
	return tool, s.handleStartBatch
}

func (s *Server) handleStartBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: paths"), nil
	}

	var paths []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	if len(paths) == 0 {
		return mcp.NewToolResultError("no file paths provided"), nil
	}

	concurrency := request.GetInt("concurrency", pipeline.DefaultConcurrency)

	handle, err := s.batcher.Start(ctx, paths, "", concurrency)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start batch: %v", err)), nil
	}

	summary, err := handle.Wait()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch failed: %v", err)), nil
	}

	return s.batchResult(ctx, summary)
}

// filewise_resume_batch
func (s *Server) resumeBatchTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_resume_batch",
		mcp.WithDescription("Resume the most recent interrupted batch, processing only its remaining pending files. Returns a JSON summary, or an error when there is nothing to resume."),
		mcp.WithNumber("concurrency", mcp.Description("How many files to process in parallel (default 3)")),
	)
	return tool, s.handleResumeBatch
}

func (s *Server) handleResumeBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ib, err := s.resumer.CheckInterrupted(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check for interrupted batch: %v", err)), nil
	}
	if ib == nil {
		return mcp.NewToolResultError("no interrupted batch to resume"), nil
	}

	concurrency := request.GetInt("concurrency", pipeline.DefaultConcurrency)

	handle, err := s.resumer.Resume(ctx, ib, concurrency)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resume batch: %v", err)), nil
	}

	summary, err := handle.Wait()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch failed: %v", err)), nil
	}

	return s.batchResult(ctx, summary)
}

// batchResult renders a batch summary plus per-item outcomes as JSON.
func (s *Server) batchResult(ctx context.Context, summary pipeline.Summary) (*mcp.CallToolResult, error) {
	items, err := s.store.GetItems(ctx, summary.BatchID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load batch items: %v", err)), nil
	}

	type itemOut struct {
		FilePath      string `json:"file_path"`
		Status        string `json:"status"`
		Category      string `json:"category,omitempty"`
		SuggestedName string `json:"suggested_name,omitempty"`
		Error         string `json:"error,omitempty"`
	}

	out := make([]itemOut, len(items))
	for i, item := range items {
		out[i] = itemOut{
			FilePath: item.FilePath,
			Status:   string(item.Status),
			Error:    item.Error,
		}
		if item.Result != nil {
			out[i].Category = item.Result.Category
			out[i].SuggestedName = item.Result.SuggestedName
		}
	}

	result := map[string]any{
		"batch_id":  summary.BatchID,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"cancelled": summary.Cancelled,
		"items":     out,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// filewise_batch_status
func (s *Server) batchStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_batch_status",
		mcp.WithDescription("Get the per-item status of a batch by ID, including completed results and failure messages."),
		mcp.WithString("batch_id", mcp.Required(), mcp.Description("Batch ID")),
	)
	return tool, s.handleBatchStatus
}

func (s *Server) handleBatchStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batchID, err := request.RequireString("batch_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: batch_id"), nil
	}

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch not found: %s", batchID)), nil
	}
	progress, err := s.store.Progress(ctx, batchID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load progress: %v", err)), nil
	}

	result := map[string]any{
		"batch_id":   batch.ID,
		"directory":  batch.Directory,
		"status":     string(batch.Status),
		"total":      progress.Total,
		"completed":  progress.Completed,
		"failed":     progress.Failed,
		"pending":    progress.Pending,
		"started_at": batch.StartedAt.Format(time.RFC3339),
	}

	data, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(data)), nil
}

// filewise_regenerate
func (s *Server) regenerateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_regenerate",
		mcp.WithDescription("Regenerate the name suggestion for an already-processed file, optionally guided by user feedback. The previous suggestion is recorded as rejected in the effectiveness ledger."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path that was previously processed")),
		mcp.WithString("feedback", mcp.Description("Free-text feedback about why the previous suggestion was unsuitable")),
	)
	return tool, s.handleRegenerate
}

func (s *Server) handleRegenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	userFeedback := request.GetString("feedback", "")

	result, err := pipeline.RegenerateForFile(ctx, s.store, s.tracker, s.processor, path, userFeedback)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("regenerate failed: %v", err)), nil
	}

	out := map[string]any{
		"file_path":      path,
		"category":       result.Category,
		"suggested_name": result.SuggestedName,
	}
	if result.ValidationPassed != nil {
		out["validation_passed"] = *result.ValidationPassed
	}

	data, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(data)), nil
}

// filewise_record_feedback
func (s *Server) recordFeedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_record_feedback",
		mcp.WithDescription("Record the user's disposition of a name suggestion: accepted, edited, rejected, or skipped. Edited feedback requires final_name and computes the edit distance from the original AI suggestion."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path the suggestion was for")),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: accepted, edited, rejected, skipped")),
		mcp.WithString("final_name", mcp.Description("The name the user actually applied (required for edited)")),
	)
	return tool, s.handleRecordFeedback
}

func (s *Server) handleRecordFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: action"), nil
	}
	finalName := request.GetString("final_name", "")

	rec, err := s.tracker.Record(ctx, path, models.FeedbackAction(action), finalName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record feedback: %v", err)), nil
	}

	result := map[string]any{
		"id":          rec.ID,
		"file_path":   rec.FilePath,
		"category":    rec.Category,
		"action":      string(rec.Action),
		"final_name":  rec.FinalName,
		"synthetic":   rec.Synthetic,
		"recorded_at": rec.RecordedAt.Format(time.RFC3339),
	}
	if rec.EditDistance != nil {
		result["edit_distance"] = *rec.EditDistance
	}

	data, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(data)), nil
}

// filewise_get_effectiveness
func (s *Server) effectivenessTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("filewise_get_effectiveness",
		mcp.WithDescription("Get per-category suggestion effectiveness: accepted/edited/rejected/skipped counts, acceptance rate, and average edit distance. Optionally restrict to a time range and flag low-performing categories."),
		mcp.WithString("range", mcp.Description("Time range: all, 24h, 7d, 30d (default all)")),
		mcp.WithNumber("low_threshold", mcp.Description("When set, return only categories with acceptance rate below this percentage")),
	)
	return tool, s.handleEffectiveness
}

func (s *Server) handleEffectiveness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	window := request.GetString("range", "all")
	since, err := feedback.ParseWindow(window)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	threshold := request.GetFloat("low_threshold", 0)

	var stats []*models.CategoryEffectiveness
	if threshold > 0 {
		stats, err = s.tracker.LowPerforming(ctx, threshold, since)
	} else {
		stats, err = s.tracker.Effectiveness(ctx, since)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load effectiveness: %v", err)), nil
	}

	type statOut struct {
		Category        string   `json:"category"`
		Accepted        int      `json:"accepted"`
		Edited          int      `json:"edited"`
		Rejected        int      `json:"rejected"`
		Skipped         int      `json:"skipped"`
		AcceptanceRate  *float64 `json:"acceptance_rate"`
		AvgEditDistance float64  `json:"avg_edit_distance"`
	}

	out := make([]statOut, len(stats))
	for i, e := range stats {
		out[i] = statOut{
			Category:        e.Category,
			Accepted:        e.Accepted,
			Edited:          e.Edited,
			Rejected:        e.Rejected,
			Skipped:         e.Skipped,
			AcceptanceRate:  e.AcceptanceRate,
			AvgEditDistance: e.AvgEditDistance,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal effectiveness: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
