package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List clipboard history, newest first. Returns summaries without binary payloads."),
	mcp.WithNumber("limit", mcp.Description("Maximum records to return (default: page size)")),
	mcp.WithNumber("offset", mcp.Description("Records to skip")),
	mcp.WithBoolean("favorites_only", mcp.Description("Return only favorited records, in favorite order")),
)

var searchToolDef = mcp.NewTool("history_search",
	mcp.WithDescription("Search clipboard history by substring over text content and file names."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default: search limit)")),
)

var copyToolDef = mcp.NewTool("history_copy",
	mcp.WithDescription("Copy a stored record back to the system clipboard."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
)

var deleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Permanently delete a record from clipboard history."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
)

var favoriteToolDef = mcp.NewTool("history_favorite",
	mcp.WithDescription("Toggle a record's favorite state. Favoriting appends to the end of favorite order."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
)

var editToolDef = mcp.NewTool("history_edit",
	mcp.WithDescription("Edit the text content of a text or combined record."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	mcp.WithString("content", mcp.Required(), mcp.Description("Replacement text content")),
)

var reorderToolDef = mcp.NewTool("favorites_reorder",
	mcp.WithDescription("Reassign favorite order to match the given ID sequence."),
	mcp.WithArray("ids", mcp.Required(), mcp.Description("Favorite record IDs in the desired order")),
)

var pauseSetToolDef = mcp.NewTool("pause_set",
	mcp.WithDescription("Pause or resume clipboard capture."),
	mcp.WithBoolean("paused", mcp.Required(), mcp.Description("true to pause, false to resume")),
	mcp.WithNumber("duration_minutes", mcp.Description("Pause duration in minutes (default 60; ignored when resuming)")),
)

var pauseStatusToolDef = mcp.NewTool("pause_status",
	mcp.WithDescription("Report pause state and history counts."),
)

var exclusionAddToolDef = mcp.NewTool("exclusion_add",
	mcp.WithDescription("Exclude an application from clipboard capture by bundle identifier."),
	mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Application bundle identifier")),
	mcp.WithString("display_name", mcp.Description("Human-readable application name")),
)

var exclusionRemoveToolDef = mcp.NewTool("exclusion_remove",
	mcp.WithDescription("Remove an application from the exclusion list."),
	mcp.WithString("bundle_id", mcp.Required(), mcp.Description("Application bundle identifier")),
)

var exclusionListToolDef = mcp.NewTool("exclusion_list",
	mcp.WithDescription("List excluded applications."),
)

var exportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export clipboard history to a file."),
	mcp.WithString("path", mcp.Description("Destination path (default: exports directory)")),
	mcp.WithString("format", mcp.Description("Export format: jsonl, markdown, or html (default jsonl)")),
	mcp.WithBoolean("favorites_only", mcp.Description("Export only favorited records")),
)
