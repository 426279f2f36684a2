package pipelinenode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
)

// Finalize produces the outward reply. After a tool ran, the narrator turns
// the sanitized result into natural language; if narration fails the
// formatted result text goes out as-is. Without a tool the interpreter's
// draft is the reply.
func Finalize(ctx context.Context, in *GraphState, interpreter contractx.Interpreter) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Interpretation.ReplyText)

	if in.ToolRecord != nil {
		narrated, tokens, err := interpreter.Narrate(ctx, contractx.NarrateRequest{
			ToolName:       in.ToolRecord.ToolName,
			ToolResult:     in.ToolRecord.ResultText,
			OriginalReply:  reply,
			CurrentMessage: in.Input.Message,
			Profile:        in.Input.Profile,
			ToolFailed:     !in.ToolRecord.Success,
		})
		in.TokensUsed += tokens
		if err != nil {
			log.Warn().Err(err).Str("tool", in.ToolRecord.ToolName).Msg("narration failed, using formatted result")
			narrated = in.ToolRecord.ResultText
		}
		if strings.TrimSpace(narrated) != "" {
			reply = narrated
		}
	}

	if reply == "" {
		reply = "Disculpa, no te entendí bien. ¿Podrías repetirlo?"
	}
	in.Reply = reply
	return in, nil
}

// EmitResult converts the finished graph state into the caller-facing
// output.
func EmitResult(in *GraphState) (GraphOutput, error) {
	if in == nil || in.State == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	out := GraphOutput{
		Reply:       in.Reply,
		Intent:      in.State.CurrentIntent,
		Stage:       string(in.State.Stage),
		IsValid:     in.State.IsValid,
		StateErrors: in.State.StateErrors,
		TokensUsed:  in.TokensUsed,
	}
	if in.ToolRecord != nil {
		out.ToolCalls = []contractx.ToolCallRecord{*in.ToolRecord}
	}
	return out, nil
}
