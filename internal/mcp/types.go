package mcp

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// LayoutStatusOutput is the output for the layout_status tool.
type LayoutStatusOutput struct {
	Signature          string `json:"signature" jsonschema:"Arrangement signature currently live"`
	SignatureMode      string `json:"signature_mode" jsonschema:"How signatures are derived: count or geometry"`
	Matcher            string `json:"matcher" jsonschema:"Window matching strategy used on restore"`
	DryRun             bool   `json:"dry_run" jsonschema:"When true, restores only log the moves they would make"`
	CachedArrangements int    `json:"cached_arrangements"`
	CachedWindows      int    `json:"cached_windows"`
	KnownSpaces        int    `json:"known_spaces"`
	PendingSpaces      int    `json:"pending_spaces" jsonschema:"Virtual desktops still waiting for a restore"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	LastRestoreStatus  string `json:"last_restore_status,omitempty"`
}

// CachedLayout summarizes one cached arrangement.
type CachedLayout struct {
	Signature    string `json:"signature"`
	Current      bool   `json:"current"`
	Processes    int    `json:"processes"`
	Windows      int    `json:"windows"`
	Placeholders int    `json:"placeholders" jsonschema:"Slots with no known position for this arrangement"`
}

// ListCachedLayoutsOutput is the output for the list_cached_layouts tool.
type ListCachedLayoutsOutput struct {
	Current string         `json:"current"`
	Layouts []CachedLayout `json:"layouts"`
}

// ProcessResult is the per-process outcome of restore_now.
type ProcessResult struct {
	PID          int32  `json:"pid"`
	Status       string `json:"status" jsonschema:"applied, count_mismatch or empty"`
	Written      int    `json:"written"`
	Placeholders int    `json:"placeholders"`
	Failed       int    `json:"failed"`
}

// RestoreNowOutput is the output for the restore_now tool.
type RestoreNowOutput struct {
	Status    string          `json:"status" jsonschema:"applied, not_pending, no_cache or space_unavailable"`
	Space     uint32          `json:"space,omitempty"`
	Signature string          `json:"signature"`
	DryRun    bool            `json:"dry_run"`
	Written   int             `json:"written"`
	Failed    int             `json:"failed"`
	Processes []ProcessResult `json:"processes,omitempty"`
}
