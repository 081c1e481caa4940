package types

// InstallRequest is the body of POST /install.
type InstallRequest struct {
	// Model categories or aliases to install. At least one is required.
	// example: ["wan","qwen"]
	Models []string `json:"models" example:"[\"wan\",\"qwen\"]"`
	// Optional HuggingFace token for gated downloads.
	HFToken string `json:"hf_token,omitempty"`
	// Optional CivitAI token.
	CivitAIToken string `json:"civitai_token,omitempty"`
	// Optional GitHub token for private repositories.
	GitHubToken string `json:"github_token,omitempty"`
}

// InstallResponse is returned by POST /install when a run was started.
type InstallResponse struct {
	// example: started
	Status string   `json:"status" example:"started"`
	Models []string `json:"models"`
	// example: 5f0c8c4e-3a55-4b8e-9a77-0d9e7c1f2b11
	JobID string `json:"job_id" example:"5f0c8c4e-3a55-4b8e-9a77-0d9e7c1f2b11"`
}

// StopResponse is returned by POST /stop.
type StopResponse struct {
	// example: stopping
	Status string `json:"status" example:"stopping"`
}

// PullResponse is returned by POST /pull.
type PullResponse struct {
	// success or error.
	// example: success
	Status string `json:"status" example:"success"`
	// Standard output of the pull.
	// example: Already up to date.
	Output string `json:"output" example:"Already up to date."`
	// Standard error of the pull when it failed.
	Error string `json:"error,omitempty"`
}

// LogsResponse is returned by GET /logs.
type LogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Always "online" when the server answers.
	// example: online
	Status       string            `json:"status" example:"online"`
	Installation InstallationState `json:"installation"`
	Available    ManifestSummary   `json:"available"`
	// Runtime directory models and nodes are installed into.
	// example: /workspace/ComfyUI
	ComfyDir string `json:"comfy_dir" example:"/workspace/ComfyUI"`
	// Whether ComfyDir exists on disk.
	// example: true
	ComfyExists bool `json:"comfy_exists" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
