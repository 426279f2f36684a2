package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/vendra/salescore/agent/contract"
)

// Stage is the sales-funnel position of a conversation.
type Stage string

const (
	StageNew         Stage = "new"
	StageExploring   Stage = "exploring"
	StageInterested  Stage = "interested"
	StageQuoting     Stage = "quoting"
	StageNegotiating Stage = "negotiating"
	StageConfirming  Stage = "confirming"
	StagePaying      Stage = "paying"
	StageCompleted   Stage = "completed"
	StageAbandoned   Stage = "abandoned"
)

// Known reports whether s is one of the declared funnel stages.
func (s Stage) Known() bool {
	switch s {
	case StageNew, StageExploring, StageInterested, StageQuoting,
		StageNegotiating, StageConfirming, StagePaying, StageCompleted, StageAbandoned:
		return true
	}
	return false
}

// DetectedProduct is a product the current turn's interpretation referenced.
// Confirmed is set only through ConfirmProduct, never from model free text.
type DetectedProduct struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Confirmed bool     `json:"confirmed"`
}

// StateError is a recorded inconsistency. A non-recoverable error forces the
// state invalid for the rest of the turn.
type StateError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	AffectedField string `json:"affected_field,omitempty"`
	Recoverable   bool   `json:"recoverable"`
}

// CommercialState is the authoritative record of what the agent is allowed to
// do in this turn. It is rebuilt from LeadMemory on every inbound message;
// detected and confirmed products are re-derived from the current
// interpretation rather than carried over, so a stale partial cart can never
// silently persist. Only the stage survives the turn (folded back into
// memory).
type CommercialState struct {
	Stage            Stage             `json:"stage"`
	CurrentIntent    contractx.Intent  `json:"current_intent,omitempty"`
	DetectedProducts []DetectedProduct `json:"detected_products,omitempty"`
	ComputedTotal    float64           `json:"computed_total,omitempty"`
	ActiveRules      []string          `json:"active_rules,omitempty"`
	PendingRules     []string          `json:"pending_rules,omitempty"`
	StateErrors      []StateError      `json:"state_errors,omitempty"`
	IsValid          bool              `json:"is_valid"`
	LastUpdated      time.Time         `json:"last_updated"`
}

// Load reconstructs the commercial state for a new turn. The stage comes from
// the last persisted value, defaulting to new when absent or unknown; the
// rule snapshots are read-only context for prompts and validation.
func Load(mem *contractx.LeadMemory, activeRules, pendingRules []string, now time.Time) *CommercialState {
	stage := StageNew
	if mem != nil {
		if persisted := Stage(strings.TrimSpace(mem.CurrentStage)); persisted.Known() {
			stage = persisted
		}
	}
	return &CommercialState{
		Stage:        stage,
		ActiveRules:  activeRules,
		PendingRules: pendingRules,
		IsValid:      true,
		LastUpdated:  now.UTC(),
	}
}

// ConfirmedProducts returns the confirmed subset of DetectedProducts, which
// keeps the subset invariant true by construction.
func (s *CommercialState) ConfirmedProducts() []DetectedProduct {
	if s == nil {
		return nil
	}
	var confirmed []DetectedProduct
	for _, p := range s.DetectedProducts {
		if p.Confirmed {
			confirmed = append(confirmed, p)
		}
	}
	return confirmed
}

// AddDetectedProduct appends a product in detection order. Duplicate ids are
// merged by quantity.
func (s *CommercialState) AddDetectedProduct(p DetectedProduct) {
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	for i := range s.DetectedProducts {
		if s.DetectedProducts[i].ProductID == p.ProductID {
			s.DetectedProducts[i].Quantity += p.Quantity
			return
		}
	}
	s.DetectedProducts = append(s.DetectedProducts, p)
}

// ConfirmProduct marks an already-detected product as confirmed and
// recomputes the total. Unknown ids are ignored: confirmation cannot invent
// products.
func (s *CommercialState) ConfirmProduct(productID string) bool {
	for i := range s.DetectedProducts {
		if s.DetectedProducts[i].ProductID == productID {
			s.DetectedProducts[i].Confirmed = true
			s.recomputeTotal()
			return true
		}
	}
	return false
}

func (s *CommercialState) recomputeTotal() {
	total := 0.0
	for _, p := range s.DetectedProducts {
		if !p.Confirmed || p.UnitPrice == nil {
			continue
		}
		qty := p.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += float64(qty) * *p.UnitPrice
	}
	s.ComputedTotal = total
}

// DeriveProducts fills the turn's detected products from the interpretation,
// matched against the catalog. Confirmation happens only under an explicit
// purchase_confirmation intent and only for products with a known unit price.
func (s *CommercialState) DeriveProducts(out contractx.InterpretationOutput, profile contractx.BusinessProfile) {
	for _, id := range out.MentionedProducts {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		detected := DetectedProduct{ProductID: id, Name: id, Quantity: 1}
		if prod, ok := profile.FindProduct(id); ok {
			detected.Name = prod.Name
			if prod.Price > 0 {
				price := prod.Price
				detected.UnitPrice = &price
			}
		}
		s.AddDetectedProduct(detected)
	}

	if out.Intent != contractx.IntentPurchaseConfirmation {
		return
	}
	for _, p := range s.DetectedProducts {
		if p.UnitPrice != nil {
			s.ConfirmProduct(p.ProductID)
		}
	}
}

// ResetDerived clears the turn's derived cart so a corrected interpretation
// can rebuild it from scratch.
func (s *CommercialState) ResetDerived() {
	s.DetectedProducts = nil
	s.ComputedTotal = 0
}

// AddError records a state inconsistency. Non-recoverable errors flip the
// supreme gate.
func (s *CommercialState) AddError(code, message, field string, recoverable bool) {
	s.StateErrors = append(s.StateErrors, StateError{
		Code:          code,
		Message:       message,
		AffectedField: field,
		Recoverable:   recoverable,
	})
	if !recoverable {
		s.IsValid = false
	}
}

// Tool name aliases keep stage tables readable.
const (
	ToolSearchProduct   = contractx.ToolSearchProduct
	ToolSearchKnowledge = contractx.ToolSearchKnowledge
	ToolPayment         = contractx.ToolPayment
	ToolFollowup        = contractx.ToolFollowup
	ToolMedia           = contractx.ToolMedia
	ToolCRM             = contractx.ToolCRM
)

// stageActions maps each stage to the side-effecting tools it may trigger.
// Read-only tools are allowed everywhere and are not listed here.
var stageActions = map[Stage][]string{
	StageNew:         {},
	StageExploring:   {ToolMedia},
	StageInterested:  {ToolMedia, ToolCRM},
	StageQuoting:     {ToolCRM},
	StageNegotiating: {ToolCRM, ToolFollowup},
	StageConfirming:  {ToolPayment},
	StagePaying:      {ToolFollowup},
	StageCompleted:   {ToolFollowup, ToolCRM},
	StageAbandoned:   {ToolFollowup},
}

// ValidActionsForStage returns the set of actions permitted in the current
// stage. "respond" is always a member; payment appears only when the state
// actually has something to charge for.
func (s *CommercialState) ValidActionsForStage() map[string]struct{} {
	actions := map[string]struct{}{
		"respond":           {},
		ToolSearchProduct:   {},
		ToolSearchKnowledge: {},
	}
	for _, tool := range stageActions[s.Stage] {
		if tool == ToolPayment && (len(s.ConfirmedProducts()) == 0 || s.ComputedTotal <= 0) {
			continue
		}
		actions[tool] = struct{}{}
	}
	return actions
}

// CanExecuteTool is the hard gate consulted by the decision stage. It fails
// closed: an invalid state blocks every tool, and payment additionally
// requires confirmed products and a positive total.
func (s *CommercialState) CanExecuteTool(name string) (bool, string) {
	if s == nil {
		return false, "estado comercial no disponible"
	}
	if !s.IsValid {
		return false, "estado comercial inválido"
	}
	if name == ToolPayment {
		if len(s.ConfirmedProducts()) == 0 {
			return false, "no hay productos confirmados"
		}
		if s.ComputedTotal <= 0 {
			return false, "el total calculado no es válido"
		}
	}
	return true, ""
}

// intentStage is the fixed forward mapping applied by ApplyInterpretation.
// Intents absent here never advance the stage; regression into abandoned is
// driven by an external inactivity trigger, not by this core.
func (s *CommercialState) advanceStageFor(intent contractx.Intent) {
	switch intent {
	case contractx.IntentProductInquiry:
		if s.Stage == StageNew {
			s.Stage = StageExploring
		}
	case contractx.IntentPurchaseIntent:
		s.Stage = StageInterested
	case contractx.IntentPurchaseConfirmation:
		if len(s.ConfirmedProducts()) > 0 {
			s.Stage = StageConfirming
		}
	}
}

// ApplyInterpretation folds the turn's classified intent into the state and
// advances the stage per the fixed intent mapping. Called only by the state
// update stage.
func (s *CommercialState) ApplyInterpretation(out contractx.InterpretationOutput, now time.Time) {
	if out.Intent.Known() {
		s.CurrentIntent = out.Intent
	} else if out.Intent != "" {
		s.CurrentIntent = contractx.IntentOther
	}
	s.advanceStageFor(s.CurrentIntent)
	s.LastUpdated = now.UTC()
}

// ApplyToolOutcome advances the stage to paying on a successful payment
// dispatch. Other tools never move the funnel by themselves.
func (s *CommercialState) ApplyToolOutcome(tool string, success bool, now time.Time) {
	if tool == ToolPayment && success {
		s.Stage = StagePaying
	}
	s.LastUpdated = now.UTC()
}

// Summary renders the state for prompt and validation consumption.
func (s *CommercialState) Summary() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	confirmed := make([]string, 0, len(s.DetectedProducts))
	detected := make([]string, 0, len(s.DetectedProducts))
	for _, p := range s.DetectedProducts {
		label := fmt.Sprintf("%s x%d", p.Name, p.Quantity)
		detected = append(detected, label)
		if p.Confirmed {
			confirmed = append(confirmed, label)
		}
	}
	return map[string]any{
		"stage":              string(s.Stage),
		"current_intent":     string(s.CurrentIntent),
		"detected_products":  detected,
		"confirmed_products": confirmed,
		"computed_total":     s.ComputedTotal,
		"is_valid":           s.IsValid,
	}
}
