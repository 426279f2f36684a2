// Package pipelinenode holds the stage functions of the message pipeline.
// Each function advances the shared GraphState; the model contributes
// interpretations and drafts, but every decision in here is deterministic.
package pipelinenode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/vendra/salescore/agent/contract"
	statex "github.com/vendra/salescore/agent/state"
)

// GraphInput is one inbound customer message with its business context.
type GraphInput struct {
	BusinessID   string
	LeadID       string
	Message      string
	SenderName   string
	ContactPhone string
	History      []contractx.Message
	Profile      contractx.BusinessProfile
}

// Decision is the action the pipeline chose for this turn.
type Decision struct {
	Action string         // "respond" or "execute_tool"
	Tool   string         // set when Action is "execute_tool"
	Params map[string]any // tool input assembled from state, not model text
	Reason string         // set when a wanted tool was blocked
}

const (
	ActionRespond     = "respond"
	ActionExecuteTool = "execute_tool"
)

// GraphState is the turn's working state threaded through the stages.
type GraphState struct {
	Input  GraphInput
	Now    time.Time
	Memory *contractx.LeadMemory
	State  *statex.CommercialState

	ActiveResponses []contractx.SuggestedResponse

	Interpretation contractx.InterpretationOutput
	Verdict        contractx.ValidationVerdict
	Decision       Decision
	ToolRecord     *contractx.ToolCallRecord

	Reply      string
	TokensUsed int
}

// GraphOutput is the turn result handed back to the caller.
type GraphOutput struct {
	Reply       string                     `json:"reply"`
	Intent      contractx.Intent           `json:"intent"`
	Stage       string                     `json:"stage"`
	ToolCalls   []contractx.ToolCallRecord `json:"tool_calls,omitempty"`
	IsValid     bool                       `json:"is_valid"`
	StateErrors []statex.StateError        `json:"state_errors,omitempty"`
	TokensUsed  int                        `json:"tokens_used"`
}

// ValidateRequest checks the inbound message and seeds the graph state.
func ValidateRequest(in GraphInput, now func() time.Time) (*GraphState, error) {
	if strings.TrimSpace(in.BusinessID) == "" {
		return nil, fmt.Errorf("%w: business id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.LeadID) == "" {
		return nil, fmt.Errorf("%w: lead id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}
	if in.Profile.BusinessID == "" {
		in.Profile.BusinessID = in.BusinessID
	}
	return &GraphState{Input: in, Now: now()}, nil
}
