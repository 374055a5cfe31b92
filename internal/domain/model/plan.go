// File: internal/domain/model/plan.go
package model

type StepStatus string

const (
	StepStatusPlan      StepStatus = "plan"
	StepStatusProcess   StepStatus = "process"
	StepStatusSubmitted StepStatus = "submitted"
	StepStatusSuccess   StepStatus = "success"
	StepStatusFailed    StepStatus = "failed"
)

func (s StepStatus) Terminal() bool {
	return s == StepStatusSuccess || s == StepStatusFailed
}

// PlanStep is one unit of planned work. ToolName is empty when the upstream
// planner found no capable tool for the step.
type PlanStep struct {
	ToolName    string         `json:"tool_name,omitempty"`
	Description string         `json:"description"`
	Args        map[string]any `json:"args,omitempty"`
	Status      StepStatus     `json:"status"`

	// OriginJobID links a Submitted step back to the job record that will
	// resolve it on a later turn.
	OriginJobID string `json:"origin_job_id,omitempty"`
}

type Plan struct {
	Goal  string      `json:"goal"`
	Steps []*PlanStep `json:"steps"`
}

// Current returns the first step that is not yet terminal, or nil when the
// plan has run to completion. A failed step halts forward progress, so it is
// the caller's business to check Status on the returned step.
func (p *Plan) Current() *PlanStep {
	if p == nil {
		return nil
	}
	for _, s := range p.Steps {
		if s.Status == StepStatusFailed {
			return s
		}
		if !s.Status.Terminal() {
			return s
		}
	}
	return nil
}

// StepByJob finds the submitted step waiting on the given origin job id.
func (p *Plan) StepByJob(originJobID string) *PlanStep {
	if p == nil {
		return nil
	}
	for _, s := range p.Steps {
		if s.OriginJobID == originJobID {
			return s
		}
	}
	return nil
}

func (p *Plan) Done() bool {
	if p == nil {
		return true
	}
	for _, s := range p.Steps {
		if s.Status != StepStatusSuccess {
			return false
		}
	}
	return true
}
