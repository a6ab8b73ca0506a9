// Package pipeline drives one newsletter run through its stages.
package pipeline

import (
	"fmt"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/models"
)

// State is a position in the run state machine.
type State string

const (
	StateIdle             State = "Idle"
	StateFetching         State = "Fetching"
	StateAggregating      State = "Aggregating"
	StateAnalyzingTrends  State = "AnalyzingTrends"
	StateSummarizing      State = "Summarizing"
	StateBuildingTemplate State = "BuildingTemplate"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// StageError is the terminal failure of a run.
type StageError struct {
	Stage     State  `json:"stage"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %s: %s", e.Stage, e.Code, e.Message)
}

// StandardError converts e for the job workers and the HTTP layer.
func (e *StageError) StandardError() *apperrors.StandardError {
	return apperrors.FromCode(e.Code, e.Message, e.Retryable).WithMetadata("stage", string(e.Stage))
}

// SourceStatus reports how one fetcher fared.
type SourceStatus struct {
	Source   string `json:"source"`
	Records  int    `json:"records"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Run is the observable outcome of Orchestrator.Generate. Draft is set only when
// State is Done; Err only when State is Failed.
type Run struct {
	ID          string                  `json:"runId"`
	UserEmail   string                  `json:"userEmail"`
	Topics      []string                `json:"topics"`
	State       State                   `json:"state"`
	FailedStage State                   `json:"failedStage,omitempty"`
	Err         *StageError             `json:"error,omitempty"`
	Sources     []SourceStatus          `json:"sources"`
	Trends      *models.TrendSummary    `json:"trends,omitempty"`
	Draft       *models.NewsletterDraft `json:"draft,omitempty"`
	Transitions []Transition            `json:"transitions"`
	StartedAt   time.Time               `json:"startedAt"`
	FinishedAt  time.Time               `json:"finishedAt"`
}

// Status renders the state as Failed(stage) for failed runs.
func (r *Run) Status() string {
	if r.State == StateFailed {
		return fmt.Sprintf("%s(%s)", StateFailed, r.FailedStage)
	}
	return string(r.State)
}
