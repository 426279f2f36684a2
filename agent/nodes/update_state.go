package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
)

// UpdateState folds the turn's outcome into the commercial state and
// persists the durable parts back into lead memory. This is the only stage
// that advances the funnel.
func UpdateState(ctx context.Context, in *GraphState, memory contractx.MemoryStore) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	in.State.ApplyInterpretation(in.Interpretation, in.Now)
	if in.ToolRecord != nil {
		in.State.ApplyToolOutcome(in.ToolRecord.ToolName, in.ToolRecord.Success, in.Now)
	}

	updates := map[string]any{
		"current_stage": string(in.State.Stage),
	}
	if len(in.Interpretation.MentionedProducts) > 0 {
		updates["products_viewed"] = in.Interpretation.MentionedProducts
	}
	if in.Interpretation.Intent == contractx.IntentObjection {
		updates["objections"] = in.Input.Message
	}
	if prefs := stringEntities(in.Interpretation.DetectedEntities, "preferences"); len(prefs) > 0 {
		updates["detected_preferences"] = prefs
	}
	collected, _ := in.Interpretation.DetectedEntities["collected_data"].(map[string]any)
	if in.ToolRecord != nil && in.ToolRecord.ToolName == contractx.ToolSearchKnowledge && in.ToolRecord.Success {
		if collected == nil {
			collected = map[string]any{}
		}
		// kept so the next turn interprets follow-up questions against it
		collected["knowledge_context"] = in.ToolRecord.ResultText
	}
	if len(collected) > 0 {
		updates["collected_data"] = collected
	}

	in.Memory = memory.Update(ctx, in.Input.BusinessID, in.Input.LeadID, updates)
	return in, nil
}

func stringEntities(entities map[string]any, key string) []string {
	switch v := entities[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
