// Package submit implements the post-submit orchestration pipeline: order
// forwarding, integration fan-out (notification, tax, accounting, shipping
// validation), result aggregation, and the targeted retry entry points.
package submit

import "context"

// ProcessType tags which pipeline stage produced a result.
type ProcessType string

const (
	ProcessForwarding   ProcessType = "forwarding"
	ProcessNotification ProcessType = "notification"
	ProcessTax          ProcessType = "tax"
	ProcessAccounting   ProcessType = "accounting"
	ProcessShipping     ProcessType = "shipping"
)

// ProcessResultException is the captured detail of one failed external
// call. It is a value, never a thrown error: stage failures are recorded,
// not propagated.
type ProcessResultException struct {
	// Category classifies the failure source: platform_api, timeout,
	// canceled, or internal.
	Category string `json:"category"`
	Message  string `json:"message"`
	// Retryable hints whether repeating the call could succeed.
	Retryable bool `json:"retryable"`
}

// ProcessResultAction is the outcome of exactly one external call.
type ProcessResultAction struct {
	Type        ProcessType             `json:"type"`
	Description string                  `json:"description"`
	Success     bool                    `json:"success"`
	Exception   *ProcessResultException `json:"exception,omitempty"`
}

// ProcessResult groups the actions of one pipeline stage. A stage may
// produce several actions: accounting produces one per document created.
type ProcessResult struct {
	Type    ProcessType           `json:"type"`
	Actions []ProcessResultAction `json:"actions"`
}

// Succeeded reports whether every action in the result succeeded.
func (r ProcessResult) Succeeded() bool {
	for _, a := range r.Actions {
		if !a.Success {
			return false
		}
	}
	return true
}

// OrderSubmitResponse is the aggregated outcome of one orchestration run.
// Status is HTTP-style: 200 when every action succeeded, 500 otherwise.
// The ordered result list lets callers see exactly which sub-step failed
// without losing the record of the ones that succeeded.
type OrderSubmitResponse struct {
	Status int `json:"status"`
	// Results are ordered by stage execution.
	Results []ProcessResult `json:"results"`
	// UnhandledError carries platform errors raised while finalizing,
	// outside any stage. The already-determined Status is not affected.
	UnhandledError string `json:"unhandledError,omitempty"`
}

// Succeeded reports whether the run completed without a single failed action.
func (r *OrderSubmitResponse) Succeeded() bool {
	return r.Status == 200
}

func allSucceeded(results []ProcessResult) bool {
	for _, res := range results {
		if !res.Succeeded() {
			return false
		}
	}
	return true
}

// ResultLog records orchestration outcomes for operators and retry
// tooling. Recording is best effort; a log failure never fails the run.
type ResultLog interface {
	Record(ctx context.Context, orderID string, resp *OrderSubmitResponse) error
}

// NopResultLog discards all records.
type NopResultLog struct{}

func (NopResultLog) Record(context.Context, string, *OrderSubmitResponse) error { return nil }
