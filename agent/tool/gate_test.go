package tool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/vendra/salescore/agent/contract"
)

type recordingTelemetry struct {
	mu      sync.Mutex
	entries []contractx.ToolExecutionLog
	done    chan struct{}
}

func newRecordingTelemetry(expected int) *recordingTelemetry {
	return &recordingTelemetry{done: make(chan struct{}, expected)}
}

func (r *recordingTelemetry) LogToolExecution(ctx context.Context, entry contractx.ToolExecutionLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingTelemetry) wait(t *testing.T) contractx.ToolExecutionLog {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry entry never arrived")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

func testGate(t *testing.T, tel contractx.Telemetry, defs ...Definition) *Gate {
	t.Helper()
	gw := NewGateway(Deps{}, tel)
	gate := gw.ForConversation(contractx.BusinessProfile{BusinessID: "biz"}, "lead", "+5215550000")
	gate.registry = &Registry{defs: map[string]Definition{}}
	for _, def := range defs {
		if err := gate.registry.Register(def); err != nil {
			t.Fatalf("register %q: %v", def.Name, err)
		}
	}
	return gate
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	gate := testGate(t, nil)
	record := gate.Execute(context.Background(), "ghost", nil)
	if record.Success {
		t.Fatal("unknown tool must fail")
	}
	if !strings.Contains(record.Error, "no existe") {
		t.Fatalf("error = %q, want unknown-tool message", record.Error)
	}
	if record.ID == "" {
		t.Fatal("every invocation must be assigned an id")
	}
}

func TestExecuteValidationFailsClosed(t *testing.T) {
	t.Parallel()

	ran := false
	gate := testGate(t, nil, Definition{
		Name:     "strict",
		Validate: func(params map[string]any) error { return errors.New("falta query") },
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			ran = true
			return map[string]any{"success": true}, nil
		},
	})
	record := gate.Execute(context.Background(), "strict", map[string]any{})
	if record.Success {
		t.Fatal("validation failure must fail the call")
	}
	if ran {
		t.Fatal("handler must not run when validation fails")
	}
}

func TestExecuteHandlerErrorBecomesFailedRecord(t *testing.T) {
	t.Parallel()

	gate := testGate(t, nil, Definition{
		Name: "boom",
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return nil, errors.New("connection refused")
		},
	})
	record := gate.Execute(context.Background(), "boom", nil)
	if record.Success {
		t.Fatal("handler error must produce a failed record")
	}
	if record.Error != "connection refused" {
		t.Fatalf("error = %q", record.Error)
	}
}

func TestExecuteInjectsConversationIDs(t *testing.T) {
	t.Parallel()

	var got map[string]any
	gate := testGate(t, nil, Definition{
		Name: contractx.ToolCRM,
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			got = params
			return map[string]any{"success": true, "status": "ok"}, nil
		},
	})
	gate.Execute(context.Background(), contractx.ToolCRM, map[string]any{"action": "add_tag", "tag": "vip"})
	if got["business_id"] != "biz" || got["lead_id"] != "lead" {
		t.Fatalf("conversation ids not injected: %v", got)
	}
}

func TestExecuteEmitsTelemetry(t *testing.T) {
	t.Parallel()

	tel := newRecordingTelemetry(1)
	gate := testGate(t, tel, Definition{
		Name: "noop",
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{"success": true, "message": "listo"}, nil
		},
	})
	gate.Execute(context.Background(), "noop", map[string]any{"k": "v"})

	entry := tel.wait(t)
	if entry.ToolName != "noop" || !entry.Success {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.BusinessID != "biz" || entry.ContactPhone != "+5215550000" {
		t.Fatalf("conversation context missing: %+v", entry)
	}
}

func TestExecuteNeverLeaksInternalErrorDetail(t *testing.T) {
	t.Parallel()

	gate := testGate(t, nil, Definition{
		Name: contractx.ToolPayment,
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{
				"success": false,
				"error":   "database error: record_id=500 at line 42",
			}, nil
		},
	})
	record := gate.Execute(context.Background(), contractx.ToolPayment, map[string]any{
		"items": []any{map[string]any{"product_id": "p1", "quantity": 1, "unit_price": 100.0}},
		"total": 100.0,
	})
	if record.Success {
		t.Fatal("record must reflect the failure")
	}
	for _, leak := range []string{"db_id", "record_id", "500", "at line", "database"} {
		if strings.Contains(strings.ToLower(record.ResultText), leak) {
			t.Fatalf("result text leaks %q: %q", leak, record.ResultText)
		}
	}
	if record.ResultText == "" {
		t.Fatal("failed call still needs a user-facing message")
	}
}

func TestForConversationRegistersCustomTools(t *testing.T) {
	t.Parallel()

	gw := NewGateway(Deps{}, nil)
	gate := gw.ForConversation(contractx.BusinessProfile{
		BusinessID: "biz",
		CustomTools: []contractx.CustomToolConfig{
			{Name: "stock_check", URL: "https://api.example/stock/{{sku}}"},
		},
	}, "lead", "")

	if _, ok := gate.Registry().Lookup("custom_stock_check"); !ok {
		t.Fatalf("custom tool not registered, have %v", gate.Registry().Names())
	}
	if _, ok := gate.Registry().Lookup(contractx.ToolPayment); !ok {
		t.Fatal("built-in tools must be registered")
	}
}
