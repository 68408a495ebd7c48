// pkg/registry/schema.go
package registry

import "robohire-billing/internal/common/validation"

// Catalog describes the job types a deployment serves, for process modelers.
type Catalog struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	GeneratedAt string   `json:"generatedAt"`
	Workers     []Worker `json:"workers"`
}

type Worker struct {
	Name          string                `json:"name"`
	TaskType      string                `json:"taskType"`
	Category      string                `json:"category"`
	Description   string                `json:"description"`
	Enabled       bool                  `json:"enabled"`
	Timeout       string                `json:"timeout"`
	MaxJobsActive int                   `json:"maxJobsActive"`
	Retries       int                   `json:"retries"`
	InputSchema   validation.JSONSchema `json:"inputSchema"`
}
