package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/agent/prompt"
	"github.com/vendra/salescore/pkg/openrouter"
)

// FallbackReply is the safe answer used when interpretation cannot produce a
// usable draft.
const FallbackReply = "Disculpa, no te entendí bien. ¿Podrías repetirlo?"

// Service bundles the compiled role graphs. It implements both the
// interpreter and refiner contracts.
type Service struct {
	cfg       Config
	interpret invokeFn
	validate  invokeFn
	narrate   invokeFn
	refine    invokeFn
}

var (
	_ contractx.Interpreter = (*Service)(nil)
	_ contractx.Refiner     = (*Service)(nil)
)

// New compiles the four role graphs against their models. The narrator
// shares the interpreter model; it is the same voice.
func New(ctx context.Context, base openrouter.Config, cfg Config, prompts *prompt.Library) (*Service, error) {
	interpModel, err := base.WithModel(cfg.InterpreterModel, cfg.InterpreterTemperature).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build interpreter model: %w", err)
	}
	validatorModel, err := base.WithModel(cfg.ValidatorModel, cfg.ValidatorTemperature).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build validator model: %w", err)
	}
	refinerModel, err := base.WithModel(cfg.RefinerModel, cfg.RefinerTemperature).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build refiner model: %w", err)
	}

	svc := &Service{cfg: cfg}
	if svc.interpret, err = compileRole(ctx, interpModel, prompts, prompt.Interpreter, "sales.interpreter_graph"); err != nil {
		return nil, err
	}
	if svc.validate, err = compileRole(ctx, validatorModel, prompts, prompt.Validator, "sales.validator_graph"); err != nil {
		return nil, err
	}
	if svc.narrate, err = compileRole(ctx, interpModel, prompts, prompt.Narrator, "sales.narrator_graph"); err != nil {
		return nil, err
	}
	if svc.refine, err = compileRole(ctx, refinerModel, prompts, prompt.Refiner, "sales.refiner_graph"); err != nil {
		return nil, err
	}
	return svc, nil
}

func compileRole(ctx context.Context, chatModel einomodel.BaseChatModel, prompts *prompt.Library, role, graphName string) (invokeFn, error) {
	system, err := prompts.Get(role)
	if err != nil {
		return nil, err
	}
	fn, err := compileRoleGraph(ctx, chatModel, system, graphName)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", role, err)
	}
	return fn, nil
}

// Interpret classifies the customer's message. A model that answers garbage
// yields the low-confidence default instead of an error; only transport
// failures propagate.
func (s *Service) Interpret(ctx context.Context, req contractx.InterpretRequest) (contractx.InterpretationOutput, int, error) {
	payload, err := marshalInput(s.interpretPayload(req))
	if err != nil {
		return contractx.InterpretationOutput{}, 0, err
	}
	msg, err := s.interpret(ctx, payload)
	if err != nil {
		return contractx.InterpretationOutput{}, 0, fmt.Errorf("%w: interpreter: %v", contractx.ErrModelInvoke, err)
	}
	tokens := tokenCount(msg)

	out, err := decodeJSON[contractx.InterpretationOutput](msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("interpreter reply unparseable, using safe default")
		return defaultInterpretation(), tokens, nil
	}
	return normalizeInterpretation(out), tokens, nil
}

// ValidateCoherence runs the model coherence check. It fails open: any
// failure yields a valid verdict with a warning, and the deterministic rules
// downstream still apply.
func (s *Service) ValidateCoherence(ctx context.Context, req contractx.CoherenceRequest) (contractx.ValidationVerdict, int, error) {
	openVerdict := contractx.ValidationVerdict{
		IsValid:  true,
		Warnings: []string{"validación de coherencia no disponible"},
	}

	payload, err := marshalInput(map[string]any{
		"interpretation": req.Interpretation,
		"state":          req.StateSummary,
		"message":        req.Message,
		"history":        trimHistory(req.History, s.historyWindow()),
	})
	if err != nil {
		return openVerdict, 0, nil
	}
	msg, err := s.validate(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Msg("coherence validation failed, failing open")
		return openVerdict, 0, nil
	}
	tokens := tokenCount(msg)

	verdict, err := decodeJSON[contractx.ValidationVerdict](msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("coherence verdict unparseable, failing open")
		return openVerdict, tokens, nil
	}
	return verdict, tokens, nil
}

// Narrate turns a tool result into the customer-facing message.
func (s *Service) Narrate(ctx context.Context, req contractx.NarrateRequest) (string, int, error) {
	payload, err := marshalInput(map[string]any{
		"tool_name":      req.ToolName,
		"tool_result":    req.ToolResult,
		"tool_failed":    req.ToolFailed,
		"original_reply": req.OriginalReply,
		"message":        req.CurrentMessage,
		"business_name":  req.Profile.BusinessName,
		"brand_voice":    req.Profile.Policies.BrandVoice,
	})
	if err != nil {
		return "", 0, err
	}
	msg, err := s.narrate(ctx, payload)
	if err != nil {
		return "", 0, fmt.Errorf("%w: narrator: %v", contractx.ErrModelInvoke, err)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", tokenCount(msg), fmt.Errorf("%w: narrator returned empty reply", contractx.ErrSchemaViolation)
	}
	return text, tokenCount(msg), nil
}

// Propose asks the refiner for behavioral improvements. Unparseable replies
// come back empty; the turn already succeeded by the time this runs.
func (s *Service) Propose(ctx context.Context, req contractx.ProposeRequest) (contractx.RefinementOutput, int, error) {
	payload, err := marshalInput(map[string]any{
		"errors":        req.Verdict.Errors,
		"warnings":      req.Verdict.Warnings,
		"hint":          req.Verdict.CorrectionHint,
		"active_rules":  req.ActiveRules,
		"pending_rules": req.PendingRules,
	})
	if err != nil {
		return contractx.RefinementOutput{}, 0, err
	}
	msg, err := s.refine(ctx, payload)
	if err != nil {
		return contractx.RefinementOutput{}, 0, fmt.Errorf("%w: refiner: %v", contractx.ErrModelInvoke, err)
	}
	tokens := tokenCount(msg)

	out, err := decodeJSON[contractx.RefinementOutput](msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("refiner reply unparseable, dropping proposals")
		return contractx.RefinementOutput{}, tokens, nil
	}
	return out, tokens, nil
}

func (s *Service) historyWindow() int {
	if s.cfg.HistoryWindow > 0 {
		return s.cfg.HistoryWindow
	}
	return 10
}

func (s *Service) interpretPayload(req contractx.InterpretRequest) map[string]any {
	payload := map[string]any{
		"message":     req.Message,
		"sender_name": req.SenderName,
		"history":     trimHistory(req.History, s.historyWindow()),
		"business":    profileContext(req.Profile),
	}
	if req.Memory != nil {
		payload["memory"] = map[string]any{
			"current_stage":        req.Memory.CurrentStage,
			"products_viewed":      req.Memory.ProductsViewed,
			"detected_preferences": req.Memory.DetectedPreferences,
			"objections":           req.Memory.Objections,
			"collected_data":       req.Memory.CollectedData,
			"conversation_summary": req.Memory.ConversationSummary,
		}
	}
	if len(req.ActiveRules) > 0 {
		payload["learned_rules"] = req.ActiveRules
	}
	if len(req.ActiveResponses) > 0 {
		responses := make([]map[string]string, 0, len(req.ActiveResponses))
		for _, r := range req.ActiveResponses {
			responses = append(responses, map[string]string{
				"situation": r.Situation,
				"response":  r.Response,
			})
		}
		payload["suggested_responses"] = responses
	}
	if req.KnowledgeContext != "" {
		payload["knowledge_context"] = req.KnowledgeContext
	}
	if req.Feedback != "" {
		payload["correction_feedback"] = req.Feedback
	}
	return payload
}

// profileContext renders the commercial view of the catalog. The model sees
// at most fifteen products; larger catalogs go through search_product.
func profileContext(profile contractx.BusinessProfile) map[string]any {
	products := make([]map[string]any, 0, len(profile.Products))
	for i, p := range profile.Products {
		if i == 15 {
			break
		}
		entry := map[string]any{
			"id":       p.ID,
			"name":     p.Name,
			"price":    p.Price,
			"currency": p.Currency,
		}
		if p.Stock != nil {
			entry["stock"] = *p.Stock
		}
		products = append(products, entry)
	}
	ctx := map[string]any{
		"name":     profile.BusinessName,
		"currency": profile.Currency,
		"products": products,
	}
	if len(profile.Products) > 15 {
		ctx["catalog_truncated"] = true
	}
	if profile.CustomPrompt != "" {
		ctx["instructions"] = profile.CustomPrompt
	}
	policies := map[string]string{}
	if profile.Policies.Shipping != "" {
		policies["shipping"] = profile.Policies.Shipping
	}
	if profile.Policies.Refund != "" {
		policies["refund"] = profile.Policies.Refund
	}
	if profile.Policies.BrandVoice != "" {
		policies["brand_voice"] = profile.Policies.BrandVoice
	}
	if len(policies) > 0 {
		ctx["policies"] = policies
	}
	if len(profile.CustomTools) > 0 {
		tools := make([]map[string]string, 0, len(profile.CustomTools))
		for _, t := range profile.CustomTools {
			tools = append(tools, map[string]string{
				"name":        contractx.CustomToolPrefix + t.Name,
				"description": t.Description,
			})
		}
		ctx["custom_tools"] = tools
	}
	return ctx
}

func trimHistory(history []contractx.Message, window int) []contractx.Message {
	if len(history) <= window {
		return history
	}
	return history[len(history)-window:]
}

func marshalInput(payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode model input: %w", err)
	}
	return map[string]any{"input": string(raw)}, nil
}

func defaultInterpretation() contractx.InterpretationOutput {
	return contractx.InterpretationOutput{
		Intent:     contractx.IntentOther,
		ReplyText:  FallbackReply,
		WantsTool:  false,
		Confidence: 0.1,
	}
}

// normalizeInterpretation clamps model output into the contract: unknown
// intents degrade to other, confidence stays in [0, 1], and a tool
// suggestion without a name is no suggestion at all.
func normalizeInterpretation(out contractx.InterpretationOutput) contractx.InterpretationOutput {
	if !out.Intent.Known() {
		out.Intent = contractx.IntentOther
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	out.SuggestedTool = strings.TrimSpace(out.SuggestedTool)
	if out.SuggestedTool == "" {
		out.WantsTool = false
	}
	if strings.TrimSpace(out.ReplyText) == "" {
		out.ReplyText = FallbackReply
	}
	return out
}
