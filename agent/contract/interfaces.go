package contract

import (
	"context"
	"time"
)

// InterpretRequest carries everything the interpreter may condition on.
// KnowledgeContext holds the last successful knowledge-search result for
// this lead; Feedback is set only on a correction retry, after the first
// interpretation failed the coherence check.
type InterpretRequest struct {
	Message          string
	SenderName       string
	History          []Message
	Profile          BusinessProfile
	Memory           *LeadMemory
	ActiveRules      []string
	ActiveResponses  []SuggestedResponse
	KnowledgeContext string
	Feedback         string
}

// CoherenceRequest is the input to the model-assisted validation pass.
type CoherenceRequest struct {
	Interpretation InterpretationOutput
	StateSummary   map[string]any
	Message        string
	History        []Message
}

// NarrateRequest asks for a natural-language rendering of a tool result.
type NarrateRequest struct {
	ToolName        string
	ToolResult      string
	OriginalReply   string
	CurrentMessage  string
	Profile         BusinessProfile
	ToolFailed      bool
}

// Interpreter is the opaque language-model collaborator. Implementations must
// tolerate malformed model output and return a usable default instead of
// failing the turn; the second return value is the token count consumed.
type Interpreter interface {
	Interpret(ctx context.Context, req InterpretRequest) (InterpretationOutput, int, error)
	ValidateCoherence(ctx context.Context, req CoherenceRequest) (ValidationVerdict, int, error)
	Narrate(ctx context.Context, req NarrateRequest) (string, int, error)
}

// ProposeRequest hands the refiner the turn's findings and the rule snapshot.
type ProposeRequest struct {
	Verdict      ValidationVerdict
	BusinessID   string
	ActiveRules  []string
	PendingRules []string
}

// Refiner proposes behavioral rule changes. Proposals are advisory; callers
// write them to the pending collection only.
type Refiner interface {
	Propose(ctx context.Context, req ProposeRequest) (RefinementOutput, int, error)
}

// ToolGate dispatches a tool under the pipeline's control. It never returns an
// error: every failure mode is captured inside the returned record.
type ToolGate interface {
	Execute(ctx context.Context, tool string, params map[string]any) ToolCallRecord
}

// LeadMemory is the durable per-(lead, business) record of conversation facts.
type LeadMemory struct {
	LeadID              string         `json:"lead_id"`
	BusinessID          string         `json:"business_id"`
	CurrentStage        string         `json:"current_stage,omitempty"`
	CollectedData       map[string]any `json:"collected_data,omitempty"`
	ProductsViewed      []string       `json:"products_viewed,omitempty"`
	FollowupsSent       []string       `json:"followups_sent,omitempty"`
	DetectedPreferences []string       `json:"detected_preferences,omitempty"`
	Objections          []string       `json:"objections,omitempty"`
	ConversationSummary string         `json:"conversation_summary,omitempty"`
	LastInteraction     string         `json:"last_interaction,omitempty"`
	InteractionCount    int            `json:"interaction_count"`
	CreatedAt           string         `json:"created_at,omitempty"`
	UpdatedAt           string         `json:"updated_at,omitempty"`
}

// MemoryStore persists LeadMemory. Get never fails: on a miss or a store
// error it returns a fresh default record so the turn can proceed without
// persistence.
type MemoryStore interface {
	Get(ctx context.Context, businessID, leadID string) *LeadMemory
	Save(ctx context.Context, mem *LeadMemory) error
	Update(ctx context.Context, businessID, leadID string, updates map[string]any) *LeadMemory
	SetStage(ctx context.Context, businessID, leadID, stage string) error
	AddProductViewed(ctx context.Context, businessID, leadID, productID string) error
}

// PendingRule is a proposed behavioral directive awaiting human review.
type PendingRule struct {
	Rule          string `json:"rule"`
	Justification string `json:"justification,omitempty"`
	Status        string `json:"status"`
}

// RuleStore keeps the two rule collections per business. Approve and Reject
// are the only paths from pending to anywhere else.
type RuleStore interface {
	Active(ctx context.Context, businessID string) ([]string, []SuggestedResponse, error)
	ListPending(ctx context.Context, businessID string) ([]PendingRule, error)
	AppendPending(ctx context.Context, businessID string, rules []string, justification string) error
	Approve(ctx context.Context, businessID string, index int) error
	Reject(ctx context.Context, businessID string, index int) error
}

// ToolExecutionLog is the telemetry payload for one tool invocation.
type ToolExecutionLog struct {
	BusinessID   string
	ToolName     string
	ToolInput    map[string]any
	Result       string
	Success      bool
	Error        string
	Duration     time.Duration
	ContactPhone string
}

// Telemetry ships tool execution logs. Implementations are expected to be
// invoked fire-and-forget; a failure must never surface into the turn.
type Telemetry interface {
	LogToolExecution(ctx context.Context, entry ToolExecutionLog) error
}

// ProductMatch is one similarity-search hit.
type ProductMatch struct {
	Product Product
	Score   float64
}

// ProductSearcher is the external similarity-search collaborator used by the
// search_product tool. The ranking algorithm is outside this core.
type ProductSearcher interface {
	Search(ctx context.Context, query string, max int) ([]ProductMatch, error)
}

// KnowledgeSearcher is the external knowledge-base lookup collaborator.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, businessID, query string, max int) (results []map[string]any, context string, err error)
}
