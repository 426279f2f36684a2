package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/agent/memory"
	nodex "github.com/vendra/salescore/agent/nodes"
	"github.com/vendra/salescore/agent/rules"
	"github.com/vendra/salescore/agent/tool"
	"github.com/vendra/salescore/pkg/coreapi"
	"github.com/vendra/salescore/pkg/kvstore"
)

// scriptedModel replays a queue of interpretations and canned verdicts so a
// whole conversation can be driven deterministically.
type scriptedModel struct {
	interpretations []contractx.InterpretationOutput
	interpretErr    error
	verdict         contractx.ValidationVerdict
	proposal        contractx.RefinementOutput
	proposeCalls    int
	call            int
}

func (s *scriptedModel) Interpret(ctx context.Context, req contractx.InterpretRequest) (contractx.InterpretationOutput, int, error) {
	if s.interpretErr != nil {
		return contractx.InterpretationOutput{}, 0, s.interpretErr
	}
	out := s.interpretations[s.call%len(s.interpretations)]
	s.call++
	return out, 50, nil
}

func (s *scriptedModel) ValidateCoherence(ctx context.Context, req contractx.CoherenceRequest) (contractx.ValidationVerdict, int, error) {
	return s.verdict, 20, nil
}

func (s *scriptedModel) Narrate(ctx context.Context, req contractx.NarrateRequest) (string, int, error) {
	return "Perfecto. " + req.ToolResult, 15, nil
}

func (s *scriptedModel) Propose(ctx context.Context, req contractx.ProposeRequest) (contractx.RefinementOutput, int, error) {
	s.proposeCalls++
	return s.proposal, 25, nil
}

type staticSearcher struct {
	matches []contractx.ProductMatch
}

func (s staticSearcher) Search(ctx context.Context, query string, max int) ([]contractx.ProductMatch, error) {
	return s.matches, nil
}

type pipelineEnv struct {
	pipeline *Pipeline
	model    *scriptedModel
	rules    *rules.Store
	memory   *memory.Store
}

func testProfile() contractx.BusinessProfile {
	return contractx.BusinessProfile{
		BusinessID: "biz-1",
		Currency:   "MXN",
		Products: []contractx.Product{
			{ID: "p1", Name: "Curso Completo", Price: 500},
			{ID: "p2", Name: "Mentoría", Price: 1200},
		},
	}
}

func newPipelineEnv(t *testing.T, model *scriptedModel, core *coreapi.Client) *pipelineEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := kvstore.NewFromClient(client)

	memStore := memory.New(kv)
	ruleStore := rules.New(kv)
	gateway := tool.NewGateway(tool.Deps{Core: core, Products: staticSearcher{}}, nil)

	p, err := New(memStore, ruleStore, model, model, gateway)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &pipelineEnv{pipeline: p, model: model, rules: ruleStore, memory: memStore}
}

func paymentServer(t *testing.T, url string) *coreapi.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/payments/link" {
			http.NotFound(w, r)
			return
		}
		var req coreapi.PaymentLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode payment request: %v", err)
		}
		if req.Total <= 0 || len(req.Items) == 0 {
			t.Errorf("payment request without confirmed items: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":        url,
			"payment_id": "pay-1",
			// fields a careless backend might add; none may reach the reply
			"db_id":       "row-9912",
			"business_id": "biz-1",
		})
	}))
	t.Cleanup(srv.Close)
	return coreapi.MustNew(coreapi.Config{URL: srv.URL, InternalSecret: "secret", Timeout: 5 * time.Second})
}

func turn(message string) nodex.GraphInput {
	return nodex.GraphInput{
		BusinessID: "biz-1",
		LeadID:     "lead-1",
		Message:    message,
		Profile:    testProfile(),
	}
}

func TestPaymentBlockedWithEmptyCart(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{
		interpretations: []contractx.InterpretationOutput{{
			Intent:        contractx.IntentPurchaseConfirmation,
			ReplyText:     "¡Claro, te genero el link!",
			WantsTool:     true,
			SuggestedTool: contractx.ToolPayment,
			Confidence:    0.9,
		}},
		verdict: contractx.ValidationVerdict{IsValid: true},
	}
	env := newPipelineEnv(t, model, nil)

	out, err := env.pipeline.HandleMessage(context.Background(), turn("sí, lo compro"))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out.ToolCalls) != 0 {
		t.Fatalf("payment must not run without confirmed products: %+v", out.ToolCalls)
	}
	if out.IsValid {
		t.Fatal("turn must be flagged invalid")
	}

	found := false
	for _, se := range out.StateErrors {
		if strings.Contains(se.Message, "confirmados") {
			found = true
		}
	}
	if !found {
		t.Fatalf("state errors should explain the missing confirmation: %+v", out.StateErrors)
	}
	if out.Reply == "" {
		t.Fatal("customer must still get a reply")
	}
}

func TestPurchaseFlowReachesPaymentLink(t *testing.T) {
	t.Parallel()

	const link = "https://pay.example/abc123"
	model := &scriptedModel{
		interpretations: []contractx.InterpretationOutput{{
			Intent:            contractx.IntentPurchaseConfirmation,
			ReplyText:         "Confirmado, te mando el pago.",
			MentionedProducts: []string{"p1"},
			WantsTool:         true,
			SuggestedTool:     contractx.ToolPayment,
			Confidence:        0.95,
		}},
		verdict: contractx.ValidationVerdict{IsValid: true},
	}
	env := newPipelineEnv(t, model, paymentServer(t, link))

	// First turn: the lead is still in stage new, so the payment action is
	// out of reach. The stage advances to confirming for the next turn.
	first, err := env.pipeline.HandleMessage(context.Background(), turn("quiero el curso completo, lo confirmo"))
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if len(first.ToolCalls) != 0 {
		t.Fatalf("payment must wait for the confirming stage: %+v", first.ToolCalls)
	}
	if first.Stage != "confirming" {
		t.Fatalf("stage after first turn = %q", first.Stage)
	}

	second, err := env.pipeline.HandleMessage(context.Background(), turn("sí, genera el link"))
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if len(second.ToolCalls) != 1 || !second.ToolCalls[0].Success {
		t.Fatalf("tool calls = %+v", second.ToolCalls)
	}
	if !strings.Contains(second.Reply, link) {
		t.Fatalf("reply should carry the payment link: %q", second.Reply)
	}
	if second.Stage != "paying" {
		t.Fatalf("stage after payment = %q", second.Stage)
	}

	// Backend-internal fields never surface in the visible result.
	resultText := second.ToolCalls[0].ResultText
	for _, leak := range []string{"db_id", "row-9912", "biz-1"} {
		if strings.Contains(resultText, leak) {
			t.Fatalf("result text leaks %q: %q", leak, resultText)
		}
	}
}

func TestProposedRulesLandInPendingOnly(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{
		interpretations: []contractx.InterpretationOutput{{
			Intent:     contractx.IntentOther,
			ReplyText:  "Déjame revisarlo.",
			Confidence: 0.1, // triggers the low-confidence warning
		}},
		verdict: contractx.ValidationVerdict{IsValid: true},
		proposal: contractx.RefinementOutput{
			ProposedRules:      []string{"Pedir más contexto cuando la confianza es baja"},
			SuggestedResponses: []contractx.SuggestedResponse{{Situation: "precio alto", Response: "ofrecer cuotas"}},
			Justification:      "confianza baja recurrente",
		},
	}
	env := newPipelineEnv(t, model, nil)

	if _, err := env.pipeline.HandleMessage(context.Background(), turn("mmm")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if model.proposeCalls != 1 {
		t.Fatalf("propose calls = %d", model.proposeCalls)
	}

	pending, err := env.rules.ListPending(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != "pending" {
		t.Fatalf("pending = %+v", pending)
	}
	pendingResponses, err := env.rules.ListPendingResponses(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("ListPendingResponses: %v", err)
	}
	if len(pendingResponses) != 1 || pendingResponses[0].Situation != "precio alto" {
		t.Fatalf("pending responses = %+v", pendingResponses)
	}
	active, activeResponses, err := env.rules.Active(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("proposals must never activate themselves: %v", active)
	}
	if len(activeResponses) != 0 {
		t.Fatalf("suggested responses must never activate themselves: %+v", activeResponses)
	}
}

func TestModelOutageStillAnswers(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{interpretErr: context.DeadlineExceeded}
	env := newPipelineEnv(t, model, nil)

	out, err := env.pipeline.HandleMessage(context.Background(), turn("hola"))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if out.Reply == "" {
		t.Fatal("outage must still produce a reply")
	}
	if len(out.ToolCalls) != 0 {
		t.Fatalf("no tool may run on a degraded turn: %+v", out.ToolCalls)
	}
}

func TestSearchToolRunsInAnyStage(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{
		interpretations: []contractx.InterpretationOutput{{
			Intent:        contractx.IntentProductInquiry,
			ReplyText:     "Te busco opciones.",
			WantsTool:     true,
			SuggestedTool: contractx.ToolSearchProduct,
			Confidence:    0.8,
		}},
		verdict: contractx.ValidationVerdict{IsValid: true},
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := kvstore.NewFromClient(client)

	searcher := staticSearcher{matches: []contractx.ProductMatch{
		{Product: contractx.Product{ID: "p2", Name: "Mentoría", Price: 1200, Currency: "MXN"}, Score: 0.92},
	}}
	gateway := tool.NewGateway(tool.Deps{Products: searcher}, nil)
	p, err := New(memory.New(kv), rules.New(kv), model, model, gateway)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := p.HandleMessage(context.Background(), turn("¿qué cursos tienes?"))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].ToolName != contractx.ToolSearchProduct {
		t.Fatalf("tool calls = %+v", out.ToolCalls)
	}
	if !strings.Contains(out.Reply, "Mentoría") {
		t.Fatalf("reply should mention the found product: %q", out.Reply)
	}
	if out.Stage != "exploring" {
		t.Fatalf("stage = %q", out.Stage)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := kvstore.NewFromClient(client)

	model := &scriptedModel{}
	gateway := tool.NewGateway(tool.Deps{}, nil)

	if _, err := New(nil, rules.New(kv), model, model, gateway); err == nil {
		t.Fatal("nil memory store must be rejected")
	}
	if _, err := New(memory.New(kv), nil, model, model, gateway); err == nil {
		t.Fatal("nil rule store must be rejected")
	}
	if _, err := New(memory.New(kv), rules.New(kv), nil, model, gateway); err == nil {
		t.Fatal("nil interpreter must be rejected")
	}
	if _, err := New(memory.New(kv), rules.New(kv), model, model, nil); err == nil {
		t.Fatal("nil gateway must be rejected")
	}
}
