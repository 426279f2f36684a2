package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// invokeFn is the compiled prompt-then-model graph reduced to a call. Tests
// swap it for a fake.
type invokeFn func(ctx context.Context, in map[string]any) (*schema.Message, error)

// compileRoleGraph builds the two-node graph every model role uses: a chat
// template feeding the role's model. The system prompt is injected as a
// template value because the role prompts contain literal JSON braces that
// FString would otherwise treat as placeholders. The raw message comes back
// so decoding stays lenient; model output is never trusted to be valid JSON.
func compileRoleGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (invokeFn, error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return func(ctx context.Context, in map[string]any) (*schema.Message, error) {
		vars := make(map[string]any, len(in)+1)
		for k, v := range in {
			vars[k] = v
		}
		vars["system"] = systemPrompt
		return runner.Invoke(ctx, vars)
	}, nil
}

// tokenCount extracts the total token usage from a model response, zero when
// the provider omitted usage data.
func tokenCount(msg *schema.Message) int {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return 0
	}
	return msg.ResponseMeta.Usage.TotalTokens
}
