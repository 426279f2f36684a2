package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	statex "github.com/vendra/salescore/agent/state"
)

// LoadState reconstructs the lead memory and the commercial state for this
// turn. Rule store failures degrade to empty collections; a turn without
// learned rules is still a correct turn.
func LoadState(ctx context.Context, in *GraphState, memory contractx.MemoryStore, rules contractx.RuleStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Memory = memory.Get(ctx, in.Input.BusinessID, in.Input.LeadID)

	var activeRules []string
	var pendingRules []string
	if rules != nil {
		active, responses, err := rules.Active(ctx, in.Input.BusinessID)
		if err != nil {
			log.Warn().Err(err).Str("business_id", in.Input.BusinessID).Msg("active rules unavailable")
		} else {
			activeRules = active
			in.ActiveResponses = responses
		}
		pending, err := rules.ListPending(ctx, in.Input.BusinessID)
		if err != nil {
			log.Warn().Err(err).Str("business_id", in.Input.BusinessID).Msg("pending rules unavailable")
		} else {
			for _, p := range pending {
				pendingRules = append(pendingRules, p.Rule)
			}
		}
	}

	in.State = statex.Load(in.Memory, activeRules, pendingRules, in.Now)
	return in, nil
}
