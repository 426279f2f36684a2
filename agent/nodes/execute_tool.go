package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
)

// ExecuteTool dispatches the decided tool through the gate. It is a no-op
// when the decision was a plain response, which keeps the graph linear.
func ExecuteTool(ctx context.Context, in *GraphState, gate contractx.ToolGate) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Decision.Action != ActionExecuteTool {
		return in, nil
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: tool gate is not configured", contractx.ErrValidation)
	}

	record := gate.Execute(ctx, in.Decision.Tool, in.Decision.Params)
	in.ToolRecord = &record
	return in, nil
}
