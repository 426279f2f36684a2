package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/vendra/salescore/agent/nodes"
)

func (p *Pipeline) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, p.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadState(ctx, in, p.memory, p.rules)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_state: %w", err)
	}

	if err := graph.AddLambdaNode("interpret",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Interpret(ctx, in, p.interpreter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node interpret: %w", err)
	}

	if err := graph.AddLambdaNode("derive_products",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DeriveProducts(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node derive_products: %w", err)
	}

	if err := graph.AddLambdaNode("validate_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateState(ctx, in, p.interpreter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_state: %w", err)
	}

	if err := graph.AddLambdaNode("decide_action",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DecideAction(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node decide_action: %w", err)
	}

	if err := graph.AddLambdaNode("execute_tool",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			gate := p.gateway.ForConversation(in.Input.Profile, in.Input.LeadID, in.Input.ContactPhone)
			return nodex.ExecuteTool(ctx, in, gate)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_tool: %w", err)
	}

	if err := graph.AddLambdaNode("update_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.UpdateState(ctx, in, p.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node update_state: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Finalize(ctx, in, p.interpreter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	if err := graph.AddLambdaNode("refine",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Refine(ctx, in, p.refiner, p.rules)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node refine: %w", err)
	}

	if err := graph.AddLambdaNode("emit_result",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.EmitResult(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node emit_result: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_state"},
		{"load_state", "interpret"},
		{"interpret", "derive_products"},
		{"derive_products", "validate_state"},
		{"validate_state", "decide_action"},
		{"decide_action", "execute_tool"},
		{"execute_tool", "update_state"},
		{"update_state", "finalize"},
		{"finalize", "refine"},
		{"refine", "emit_result"},
		{"emit_result", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("sales.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return runner, nil
}
