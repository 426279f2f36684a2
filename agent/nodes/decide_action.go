package pipelinenode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
)

// DecideAction is the pipeline's choke point: the pipeline decides, never
// the model. A tool runs only when the verdict and the commercial state both
// allow it; everything else degrades to a plain response. The function is
// pure over the graph state, with no model and no I/O.
func DecideAction(in *GraphState) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	in.Decision = decide(in)
	if in.Decision.Reason != "" {
		log.Warn().
			Str("tool", in.Interpretation.SuggestedTool).
			Str("reason", in.Decision.Reason).
			Msg("tool blocked")
		in.State.AddError("tool_blocked", in.Decision.Reason, "tools", true)
	}
	return in, nil
}

func decide(in *GraphState) Decision {
	respond := Decision{Action: ActionRespond}

	if !in.Verdict.IsValid || !in.State.IsValid {
		return respond
	}
	if !in.Interpretation.WantsTool || in.Interpretation.SuggestedTool == "" {
		return respond
	}

	tool := in.Interpretation.SuggestedTool

	if ok, reason := in.State.CanExecuteTool(tool); !ok {
		respond.Reason = reason
		return respond
	}
	if !contractx.ReadOnlyTool(tool) {
		if _, ok := in.State.ValidActionsForStage()[tool]; !ok {
			respond.Reason = fmt.Sprintf("la acción %s no es válida en la etapa %s", tool, in.State.Stage)
			return respond
		}
	}

	return Decision{
		Action: ActionExecuteTool,
		Tool:   tool,
		Params: toolParams(in, tool),
	}
}

// toolParams assembles the tool input. Payment input comes exclusively from
// the commercial state: the model's suggested params never set amounts.
func toolParams(in *GraphState, tool string) map[string]any {
	if tool == contractx.ToolPayment {
		confirmed := in.State.ConfirmedProducts()
		items := make([]any, 0, len(confirmed))
		for _, p := range confirmed {
			item := map[string]any{
				"product_id": p.ProductID,
				"name":       p.Name,
				"quantity":   p.Quantity,
			}
			if p.UnitPrice != nil {
				item["unit_price"] = *p.UnitPrice
			}
			items = append(items, item)
		}
		return map[string]any{
			"items":    items,
			"total":    in.State.ComputedTotal,
			"currency": in.Input.Profile.Currency,
		}
	}

	params := map[string]any{}
	for k, v := range in.Interpretation.SuggestedToolParams {
		params[k] = v
	}
	if tool == contractx.ToolSearchProduct || tool == contractx.ToolSearchKnowledge {
		if _, ok := params["query"]; !ok {
			params["query"] = in.Input.Message
		}
	}
	return params
}
