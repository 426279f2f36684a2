package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/vendra/salescore/agent/contract"
)

func TestInterpolateLeavesUnmatchedPlaceholders(t *testing.T) {
	t.Parallel()

	got := interpolateString("https://api.example/{{sku}}/info?u={{user}}", map[string]any{"sku": "A-1"})
	want := "https://api.example/A-1/info?u={{user}}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInterpolateNestedStructures(t *testing.T) {
	t.Parallel()

	out := interpolate(map[string]any{
		"sku":  "{{sku}}",
		"deep": []any{"{{qty}}", map[string]any{"note": "pedido {{sku}}"}},
	}, map[string]any{"sku": "A-1", "qty": 3})

	m := out.(map[string]any)
	if m["sku"] != "A-1" {
		t.Fatalf("sku = %v", m["sku"])
	}
	deep := m["deep"].([]any)
	if deep[0] != "3" {
		t.Fatalf("qty = %v, placeholders render as text", deep[0])
	}
	if deep[1].(map[string]any)["note"] != "pedido A-1" {
		t.Fatalf("nested note = %v", deep[1])
	}
}

func TestCustomDefinitionPostsInterpolatedBody(t *testing.T) {
	t.Parallel()

	var gotPath, gotHeader string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"stock": 7, "message": "hay stock"}`))
	}))
	defer srv.Close()

	def := CustomDefinition(srv.Client(), contractx.CustomToolConfig{
		Name:         "stock_check",
		URL:          srv.URL + "/stock/{{sku}}",
		Method:       "post",
		Headers:      map[string]string{"X-Api-Key": "key-{{sku}}"},
		BodyTemplate: map[string]any{"sku": "{{sku}}", "source": "agent"},
	})
	if def.Name != "custom_stock_check" {
		t.Fatalf("name = %q", def.Name)
	}

	raw, err := def.Run(context.Background(), map[string]any{"sku": "A-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPath != "/stock/A-1" || gotHeader != "key-A-1" {
		t.Fatalf("request = %q header %q", gotPath, gotHeader)
	}
	if gotBody["sku"] != "A-1" || gotBody["source"] != "agent" {
		t.Fatalf("body = %v", gotBody)
	}
	if raw["success"] != true {
		t.Fatalf("raw = %v", raw)
	}
	if raw["message"] != "hay stock" {
		t.Fatalf("message = %v, response message should win", raw["message"])
	}
}

func TestCustomDefinitionNon2xxFailsSoft(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	def := CustomDefinition(srv.Client(), contractx.CustomToolConfig{Name: "flaky", URL: srv.URL})
	raw, err := def.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run should not error on http status, got %v", err)
	}
	if raw["success"] != false {
		t.Fatalf("raw = %v, want failed result", raw)
	}
}
