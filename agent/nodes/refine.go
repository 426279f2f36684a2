package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
)

// RuleResponder is the subset of the rule store the refine stage writes to.
// Both methods land in the pending collection; the stage has no path to the
// active one.
type RuleResponder interface {
	AppendPending(ctx context.Context, businessID string, rules []string, justification string) error
	ProposeResponses(ctx context.Context, businessID string, responses []contractx.SuggestedResponse) error
}

// Refine runs the learning pass when validation produced findings. Proposals
// land in the pending collection only; nothing here can change active
// behavior, and nothing here can fail the turn.
func Refine(ctx context.Context, in *GraphState, refiner contractx.Refiner, rules RuleResponder) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	if refiner == nil || rules == nil || !in.Verdict.HasFindings() {
		return in, nil
	}

	out, tokens, err := refiner.Propose(ctx, contractx.ProposeRequest{
		Verdict:      in.Verdict,
		BusinessID:   in.Input.BusinessID,
		ActiveRules:  in.State.ActiveRules,
		PendingRules: in.State.PendingRules,
	})
	in.TokensUsed += tokens
	if err != nil {
		log.Warn().Err(err).Msg("refinement failed, skipping")
		return in, nil
	}
	if out.Empty() {
		return in, nil
	}

	if len(out.ProposedRules) > 0 {
		if err := rules.AppendPending(ctx, in.Input.BusinessID, out.ProposedRules, out.Justification); err != nil {
			log.Warn().Err(err).Msg("could not persist proposed rules")
		}
	}
	if len(out.SuggestedResponses) > 0 {
		if err := rules.ProposeResponses(ctx, in.Input.BusinessID, out.SuggestedResponses); err != nil {
			log.Warn().Err(err).Msg("could not persist suggested responses")
		}
	}
	return in, nil
}
