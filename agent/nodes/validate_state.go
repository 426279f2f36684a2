package pipelinenode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	statex "github.com/vendra/salescore/agent/state"
)

// ValidateState runs the two validation tiers. The model coherence check is
// advisory and fails open; the deterministic rules after it always apply and
// can only add findings, never remove them. When the coherence check itself
// flags the interpretation, the stage re-interprets once with the findings as
// correction feedback before settling the verdict.
func ValidateState(ctx context.Context, in *GraphState, interpreter contractx.Interpreter) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	verdict := runCoherence(ctx, in, interpreter)

	// Only model-found incoherence earns a retry. The deterministic rules
	// below never do: a second interpretation cannot conjure a confirmed
	// cart out of an empty one.
	if !verdict.IsValid && len(verdict.Errors) > 0 {
		req := interpretRequest(in)
		req.Feedback = correctionFeedback(verdict.Errors)
		out, tokens, err := interpreter.Interpret(ctx, req)
		in.TokensUsed += tokens
		if err != nil {
			log.Warn().Err(err).Msg("correction retry failed, keeping first interpretation")
		} else {
			in.Interpretation = out
			in.State.ResetDerived()
			in.State.DeriveProducts(out, in.Input.Profile)
			verdict = runCoherence(ctx, in, interpreter)
		}
	}

	applyHardRules(&verdict, in.Interpretation, in.State)
	in.Verdict = verdict

	if !verdict.IsValid {
		for _, errText := range verdict.Errors {
			in.State.AddError("validation_failed", errText, "", false)
		}
		if len(verdict.Errors) == 0 {
			in.State.AddError("validation_failed", "estado incoherente", "", false)
		}
	}
	return in, nil
}

// runCoherence asks the model whether the interpretation fits the commercial
// state. An unreachable validator must not fail the turn closed, so a
// transport error yields an open verdict carrying only a warning.
func runCoherence(ctx context.Context, in *GraphState, interpreter contractx.Interpreter) contractx.ValidationVerdict {
	verdict, tokens, err := interpreter.ValidateCoherence(ctx, contractx.CoherenceRequest{
		Interpretation: in.Interpretation,
		StateSummary:   in.State.Summary(),
		Message:        in.Input.Message,
		History:        in.Input.History,
	})
	in.TokensUsed += tokens
	if err != nil {
		log.Warn().Err(err).Str("lead_id", in.Input.LeadID).Msg("coherence check unavailable, failing open")
		return contractx.ValidationVerdict{
			IsValid:  true,
			Warnings: []string{"validación de coherencia no disponible"},
		}
	}
	return verdict
}

func correctionFeedback(errs []string) string {
	if len(errs) > 2 {
		errs = errs[:2]
	}
	return "CORRECCIÓN NECESARIA: " + strings.Join(errs, "; ")
}

// applyHardRules layers the deterministic checks on top of the model
// verdict. These rules do not depend on any model and cannot be talked out
// of: a payment suggestion without confirmed products always fails.
func applyHardRules(verdict *contractx.ValidationVerdict, out contractx.InterpretationOutput, st *statex.CommercialState) {
	if out.SuggestedTool == contractx.ToolPayment {
		if len(st.ConfirmedProducts()) == 0 {
			verdict.IsValid = false
			verdict.Errors = append(verdict.Errors,
				"REGLA: No se puede generar pago sin productos confirmados")
		} else if st.ComputedTotal <= 0 {
			verdict.IsValid = false
			verdict.Errors = append(verdict.Errors,
				"REGLA: No se puede generar pago con total en cero")
		}
		if out.Intent != contractx.IntentPurchaseConfirmation {
			verdict.Warnings = append(verdict.Warnings,
				"Sugiere payment pero la intención no es purchase_confirmation")
		}
	}

	if out.Confidence < 0.3 {
		verdict.Warnings = append(verdict.Warnings,
			fmt.Sprintf("Confianza muy baja (%.2f), considerar pedir más información", out.Confidence))
	}

	if out.WantsTool && out.SuggestedTool == "" {
		verdict.Warnings = append(verdict.Warnings,
			"Indica wants_tool pero no sugiere qué tool")
	}
}
