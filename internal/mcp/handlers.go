package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/export"
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
)

const defaultPauseMinutes = 60

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	database *sql.DB
	cfg      *config.Config
	hist     *history.Store
	gate     *gate.Gate
	src      clipboard.Source
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *sql.DB, cfg *config.Config, hist *history.Store, g *gate.Gate, src clipboard.Source) *Handlers {
	return &Handlers{database: database, cfg: cfg, hist: hist, gate: g, src: src}
}

// Request types for each tool

// ListRequest represents the arguments for history_list.
type ListRequest struct {
	Limit         int  `json:"limit,omitempty"`
	Offset        int  `json:"offset,omitempty"`
	FavoritesOnly bool `json:"favorites_only,omitempty"`
}

// SearchRequest represents the arguments for history_search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// IDRequest represents the arguments for tools addressing a single record.
type IDRequest struct {
	ID string `json:"id"`
}

// EditRequest represents the arguments for history_edit.
type EditRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ReorderRequest represents the arguments for favorites_reorder.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

// PauseSetRequest represents the arguments for pause_set.
type PauseSetRequest struct {
	Paused          bool `json:"paused"`
	DurationMinutes int  `json:"duration_minutes,omitempty"`
}

// ExclusionRequest represents the arguments for exclusion_add and exclusion_remove.
type ExclusionRequest struct {
	BundleID    string `json:"bundle_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// ExportRequest represents the arguments for history_export.
type ExportRequest struct {
	Path          string `json:"path,omitempty"`
	Format        string `json:"format,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
}

// Response types

// ListOutput is the result of history_list and history_search.
type ListOutput struct {
	Items []history.Summary `json:"items"`
	Count int               `json:"count"`
}

// StatusOutput is the result of pause_status and pause_set.
type StatusOutput struct {
	Paused           bool  `json:"paused"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	TotalRecords     int   `json:"total_records"`
	FavoriteRecords  int   `json:"favorite_records"`
}

// Handler implementations

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.FavoritesOnly {
		records, err := h.hist.Favorites(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(ListOutput{Items: history.SummarizeAll(records), Count: len(records)})
	}

	limit := clamp(input.Limit, h.cfg.PageSize)
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}
	records, err := db.ListRecords(ctx, h.database, limit, offset)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ListOutput{Items: history.SummarizeAll(records), Count: len(records)})
}

// HandleSearch handles the history_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Query == "" {
		return errorResult(errors.NewInvalidRequest("query is required")), nil
	}

	limit := clamp(input.Limit, h.cfg.SearchLimit)
	records, err := db.SearchRecords(ctx, h.database, input.Query, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ListOutput{Items: history.SummarizeAll(records), Count: len(records)})
}

// HandleCopy handles the history_copy tool call.
func (h *Handlers) HandleCopy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	rec, err := h.hist.CopyRecord(ctx, h.src, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(history.Summarize(rec))
}

// HandleDelete handles the history_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.hist.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "deleted": true})
}

// HandleFavorite handles the history_favorite tool call.
func (h *Handlers) HandleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	favorited, err := h.hist.ToggleFavorite(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "is_favorite": favorited})
}

// HandleEdit handles the history_edit tool call.
func (h *Handlers) HandleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EditRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.hist.EditContent(ctx, input.ID, input.Content); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "updated": true})
}

// HandleReorder handles the favorites_reorder tool call.
func (h *Handlers) HandleReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReorderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.IDs) == 0 {
		return errorResult(errors.NewInvalidRequest("ids is required")), nil
	}

	if err := h.hist.ReorderFavorites(ctx, input.IDs); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"reordered": len(input.IDs)})
}

// HandlePauseSet handles the pause_set tool call.
func (h *Handlers) HandlePauseSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PauseSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Paused {
		minutes := input.DurationMinutes
		if minutes <= 0 {
			minutes = defaultPauseMinutes
		}
		if err := h.gate.Pause(ctx, time.Duration(minutes)*time.Minute); err != nil {
			return errorResult(err), nil
		}
	} else {
		if err := h.gate.Resume(ctx); err != nil {
			return errorResult(err), nil
		}
	}
	return h.statusResult(ctx)
}

// HandlePauseStatus handles the pause_status tool call.
func (h *Handlers) HandlePauseStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.statusResult(ctx)
}

func (h *Handlers) statusResult(ctx context.Context) (*mcp.CallToolResult, error) {
	total, favorites, err := h.hist.Counts(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(StatusOutput{
		Paused:           h.gate.IsPaused(ctx),
		RemainingSeconds: int64(h.gate.RemainingPause(ctx).Round(time.Second).Seconds()),
		TotalRecords:     total,
		FavoriteRecords:  favorites,
	})
}

// HandleExclusionAdd handles the exclusion_add tool call.
func (h *Handlers) HandleExclusionAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExclusionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.BundleID == "" {
		return errorResult(errors.NewInvalidRequest("bundle_id is required")), nil
	}

	if err := h.gate.AddExclusion(ctx, input.BundleID, input.DisplayName); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"bundle_id": input.BundleID, "excluded": true})
}

// HandleExclusionRemove handles the exclusion_remove tool call.
func (h *Handlers) HandleExclusionRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExclusionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.BundleID == "" {
		return errorResult(errors.NewInvalidRequest("bundle_id is required")), nil
	}

	if err := h.gate.RemoveExclusion(ctx, input.BundleID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"bundle_id": input.BundleID, "excluded": false})
}

// HandleExclusionList handles the exclusion_list tool call.
func (h *Handlers) HandleExclusionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exclusions, err := h.gate.Exclusions(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"exclusions": exclusions, "count": len(exclusions)})
}

// HandleExport handles the history_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := export.Export(ctx, h.database, h.cfg, export.Input{
		Path:          input.Path,
		Format:        export.Format(input.Format),
		FavoritesOnly: input.FavoritesOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// clamp applies the default when n is unset and caps it at the default's
// ceiling.
func clamp(n, def int) int {
	if n <= 0 || n > def {
		return def
	}
	return n
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if clipErr, ok := err.(*errors.ClipError); ok {
		errorObj := map[string]any{
			"code":    clipErr.Code,
			"message": clipErr.Message,
			"status":  clipErr.Status,
		}
		if clipErr.Code != errors.ErrInternal && clipErr.Details != nil {
			errorObj["details"] = clipErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
