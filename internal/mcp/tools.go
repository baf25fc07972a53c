package mcp

import "github.com/mark3labs/mcp-go/mcp"

var submitToolDef = mcp.NewTool("checkin_submit",
	mcp.WithDescription("Append a check-in. The retrospective is scored against the previous check-in's prospective; a low score sets drift_flag."),
	mcp.WithString("retrospective", mcp.Description("What actually happened in the block that just ended")),
	mcp.WithString("prospective", mcp.Description("What you intend to do in the next block")),
	mcp.WithString("target", mcp.Description("Optional longer-range direction the prospective is compared against")),
	mcp.WithNumber("hours_slept", mcp.Description("Optional hours slept, 0 to 24")),
	mcp.WithNumber("timestamp", mcp.Description("Optional unix seconds; defaults to now")),
)

var fetchToolDef = mcp.NewTool("checkin_fetch",
	mcp.WithDescription("Fetch one check-in by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Check-in id")),
	mcp.WithBoolean("include_embeddings", mcp.Description("Include stored embedding vectors")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("checkin_list",
	mcp.WithDescription("List check-ins, newest first."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var latestToolDef = mcp.NewTool("checkin_latest",
	mcp.WithDescription("Return the most recently appended check-in."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var replayToolDef = mcp.NewTool("checkin_replay",
	mcp.WithDescription("Recompute a check-in's alignment from stored vectors (or stored text for fallback-mode check-ins) and compare with the stored scores. Never calls an embedding provider."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Check-in id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var dueToolDef = mcp.NewTool("checkin_due",
	mcp.WithDescription("Report whether a check-in is due now, and when the next one is due."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var moodRecordToolDef = mcp.NewTool("mood_record",
	mcp.WithDescription("Record a PANAS mood entry. All 20 items must be rated 1 to 5."),
	mcp.WithObject("ratings", mcp.Required(), mcp.Description("Map of PANAS item name to rating (1-5)")),
	mcp.WithString("note", mcp.Description("Optional free-text note")),
	mcp.WithNumber("timestamp", mcp.Description("Optional unix seconds; defaults to now")),
)

var moodListToolDef = mcp.NewTool("mood_list",
	mcp.WithDescription("List mood entries, newest first."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithBoolean("include_ratings", mcp.Description("Include per-item ratings")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var collapseToolDef = mcp.NewTool("collapse_status",
	mcp.WithDescription("Evaluate the last seven days for sleep, strain and alignment-decline signals."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var scoringStatusToolDef = mcp.NewTool("scoring_status",
	mcp.WithDescription("Report whether scores are semantic or token-overlap fallback, plus journal counts."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("journal_export",
	mcp.WithDescription("Export all check-ins and mood entries to a JSONL file, optionally encrypted."),
	mcp.WithString("path", mcp.Description("Destination .jsonl path; encrypted exports must end in .sealed.jsonl (default ~/.attune/exports/journal-<timestamp>[.sealed].jsonl)")),
	mcp.WithString("passphrase", mcp.Description("Encrypt the export with this passphrase")),
)

var importToolDef = mcp.NewTool("journal_import",
	mcp.WithDescription("Import a JSONL journal export. Records are appended in file order."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl path")),
	mcp.WithString("passphrase", mcp.Description("Passphrase for an encrypted export")),
	mcp.WithString("mode", mcp.Enum("error", "skip"), mcp.Description("Collision handling (default error)")),
)
