package contract

// Intent is the classified customer intent for a single message.
type Intent string

const (
	IntentGreeting             Intent = "greeting"
	IntentProductInquiry       Intent = "product_inquiry"
	IntentPriceInquiry         Intent = "price_inquiry"
	IntentAvailabilityInquiry  Intent = "availability_inquiry"
	IntentPurchaseIntent       Intent = "purchase_intent"
	IntentPurchaseConfirmation Intent = "purchase_confirmation"
	IntentObjection            Intent = "objection"
	IntentComplaint            Intent = "complaint"
	IntentSupport              Intent = "support"
	IntentFarewell             Intent = "farewell"
	IntentOther                Intent = "other"
)

// Known returns false for intent values outside the classification set.
func (i Intent) Known() bool {
	switch i {
	case IntentGreeting, IntentProductInquiry, IntentPriceInquiry,
		IntentAvailabilityInquiry, IntentPurchaseIntent, IntentPurchaseConfirmation,
		IntentObjection, IntentComplaint, IntentSupport, IntentFarewell, IntentOther:
		return true
	}
	return false
}

// InterpretationOutput is the model's structured, advisory-only reading of a
// customer message. It never mutates state; downstream stages consume it
// read-only.
type InterpretationOutput struct {
	Intent              Intent         `json:"intent"`
	ReplyText           string         `json:"reply_text"`
	DetectedEntities    map[string]any `json:"detected_entities,omitempty"`
	MentionedProducts   []string       `json:"mentioned_products,omitempty"`
	WantsTool           bool           `json:"wants_tool"`
	SuggestedTool       string         `json:"suggested_tool,omitempty"`
	SuggestedToolParams map[string]any `json:"suggested_tool_params,omitempty"`
	Confidence          float64        `json:"confidence"`
}

// ValidationVerdict is the combined outcome of the model coherence check and
// the deterministic hard rules. Errors block tool execution; warnings do not.
type ValidationVerdict struct {
	IsValid        bool     `json:"is_valid"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	PassedChecks   []string `json:"passed_checks,omitempty"`
	CorrectionHint string   `json:"correction_hint,omitempty"`
}

// HasFindings reports whether the verdict carries anything the refiner could
// learn from.
func (v ValidationVerdict) HasFindings() bool {
	return len(v.Errors) > 0 || len(v.Warnings) > 0
}

// SuggestedResponse pairs a recurring situation with a canned reply proposal.
type SuggestedResponse struct {
	Situation string `json:"situation"`
	Response  string `json:"response"`
}

// RefinementOutput is the refiner's proposal set. Nothing in it is applied
// automatically; proposed rules land in the pending collection only.
type RefinementOutput struct {
	ProposedRules      []string            `json:"proposed_rules,omitempty"`
	SuggestedResponses []SuggestedResponse `json:"suggested_responses,omitempty"`
	RulesToDeactivate  []string            `json:"rules_to_deactivate,omitempty"`
	Justification      string              `json:"justification,omitempty"`
}

// Empty reports whether the refiner proposed nothing at all.
func (r RefinementOutput) Empty() bool {
	return len(r.ProposedRules) == 0 && len(r.SuggestedResponses) == 0 && len(r.RulesToDeactivate) == 0
}

// ToolOutput is the uniform result contract every tool returns. Fields holds
// tool-specific data (products, payment_url, media_url, ...) and is filtered
// by the sanitizer before any of it reaches the outward message.
type ToolOutput struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// ToolCallRecord is the append-only audit entry for one gate invocation,
// including invocations that never dispatched because input validation failed.
type ToolCallRecord struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	ToolInput  map[string]any `json:"tool_input"`
	ResultText string         `json:"result_text"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Message is one turn of conversation history handed to the interpreter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Product is a catalog entry from the business profile.
type Product struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Price       float64        `json:"price,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Category    string         `json:"category,omitempty"`
	Stock       *int           `json:"stock,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Policies groups the business policy texts surfaced to the interpreter.
type Policies struct {
	Shipping    string   `json:"shipping,omitempty"`
	Refund      string   `json:"refund,omitempty"`
	BrandVoice  string   `json:"brand_voice,omitempty"`
	CustomRules []string `json:"custom_rules,omitempty"`
}

// CustomToolConfig describes a user-defined HTTP tool. URL, headers and body
// templates may contain {{param}} placeholders interpolated at call time.
type CustomToolConfig struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url"`
	Method       string            `json:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate map[string]any    `json:"body_template,omitempty"`
}

// BusinessProfile is the per-business catalog and policy context for a turn.
type BusinessProfile struct {
	BusinessID   string             `json:"business_id"`
	BusinessName string             `json:"business_name"`
	Timezone     string             `json:"timezone,omitempty"`
	Currency     string             `json:"currency,omitempty"`
	Products     []Product          `json:"products,omitempty"`
	Policies     Policies           `json:"policies,omitempty"`
	CustomPrompt string             `json:"custom_prompt,omitempty"`
	CustomTools  []CustomToolConfig `json:"custom_tools,omitempty"`
}

// FindProduct looks a catalog product up by id.
func (p BusinessProfile) FindProduct(id string) (Product, bool) {
	for _, prod := range p.Products {
		if prod.ID == id {
			return prod, true
		}
	}
	return Product{}, false
}
