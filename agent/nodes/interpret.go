package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
)

// Interpret asks the model to classify the message. A transport failure does
// not kill the turn: the customer still gets an answer, just a generic one
// with no tool behind it.
func Interpret(ctx context.Context, in *GraphState, interpreter contractx.Interpreter) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	out, tokens, err := interpreter.Interpret(ctx, interpretRequest(in))
	in.TokensUsed += tokens
	if err != nil {
		log.Error().Err(err).Str("lead_id", in.Input.LeadID).Msg("interpretation failed, degrading to fallback reply")
		in.Interpretation = contractx.InterpretationOutput{
			Intent:     contractx.IntentOther,
			ReplyText:  "Disculpa, tuve un problema para procesar tu mensaje. ¿Me lo repites?",
			Confidence: 0,
		}
		return in, nil
	}
	in.Interpretation = out
	return in, nil
}

// interpretRequest assembles the model input from the turn's loaded state.
// The validation stage reuses it for the correction retry, with Feedback set.
func interpretRequest(in *GraphState) contractx.InterpretRequest {
	return contractx.InterpretRequest{
		Message:          in.Input.Message,
		SenderName:       in.Input.SenderName,
		History:          in.Input.History,
		Profile:          in.Input.Profile,
		Memory:           in.Memory,
		ActiveRules:      in.State.ActiveRules,
		ActiveResponses:  in.ActiveResponses,
		KnowledgeContext: knowledgeContext(in.Memory),
	}
}

// knowledgeContext recovers the knowledge-search result the previous turn
// folded into memory, so follow-up questions interpret against it.
func knowledgeContext(mem *contractx.LeadMemory) string {
	if mem == nil {
		return ""
	}
	s, _ := mem.CollectedData["knowledge_context"].(string)
	return s
}

// DeriveProducts projects the interpretation's product mentions onto the
// commercial state before validation runs, so validation sees the cart the
// turn would actually act on.
func DeriveProducts(in *GraphState) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	in.State.DeriveProducts(in.Interpretation, in.Input.Profile)
	return in, nil
}
