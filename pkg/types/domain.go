package types

import "time"

// InstallationState is the externally visible record of the current (or last)
// installation run.
type InstallationState struct {
	// Lifecycle status: idle, running, completed, error or cancelled.
	// example: running
	Status string `json:"status" example:"running"`
	// Best-effort completion percentage in [0,100]. Exactly 100 once completed.
	// example: 37
	Progress int `json:"progress" example:"37"`
	// Short description of what the installer is doing right now.
	// example: Downloading models...
	CurrentTask string `json:"current_task" example:"Downloading models..."`
	// Time the current run started; null before the first run.
	StartedAt *time.Time `json:"started_at"`
	// Time the current run completed successfully; null otherwise.
	CompletedAt *time.Time `json:"completed_at"`
	// Failure description, only set when status is error.
	// example: process exited with code 1
	Error string `json:"error,omitempty" example:"process exited with code 1"`
	// Identifier of the current run.
	// example: 5f0c8c4e-3a55-4b8e-9a77-0d9e7c1f2b11
	JobID string `json:"job_id,omitempty" example:"5f0c8c4e-3a55-4b8e-9a77-0d9e7c1f2b11"`
	// Models requested for the current run.
	// example: ["wan","qwen"]
	Models []string `json:"models,omitempty" example:"[\"wan\",\"qwen\"]"`
}

// LogEntry is one line recorded from the installer or the orchestrator itself.
type LogEntry struct {
	// RFC3339 timestamp with millisecond precision.
	// example: 2026-10-19T11:42:07.123Z
	Time string `json:"time" example:"2026-10-19T11:42:07.123Z"`
	// debug, info, warning or error.
	// example: info
	Level string `json:"level" example:"info"`
	// example: ✓ Downloaded
	Message string `json:"message" example:"✓ Downloaded"`
}

// ManifestTotals counts the entries of the manifest.
type ManifestTotals struct {
	// example: 42
	Models int `json:"models" example:"42"`
	// example: 7
	CustomNodes int `json:"custom_nodes" example:"7"`
}

// ManifestSummary describes what the manifest offers for installation.
type ManifestSummary struct {
	// Sorted unique model categories.
	// example: ["LTX2","Qwen","Wan2.2"]
	AvailableModels []string       `json:"available_models" example:"[\"LTX2\",\"Qwen\",\"Wan2.2\"]"`
	Total           ManifestTotals `json:"total"`
}
