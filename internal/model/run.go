package model

import "time"

// RunStatus tracks the lifecycle of a batch generation run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusGenerating RunStatus = "generating"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one batch invocation over a schedule document.
type Run struct {
	ID           string    `json:"id"`
	Document     string    `json:"document"`
	Status       RunStatus `json:"status"`
	Slots        int       `json:"slots"`
	TotalCostUSD float64   `json:"total_cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
