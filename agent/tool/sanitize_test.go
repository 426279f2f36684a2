package tool

import (
	"strings"
	"testing"

	contractx "github.com/vendra/salescore/agent/contract"
)

func TestSanitizeDropsBlockedFields(t *testing.T) {
	t.Parallel()

	out := sanitizeOutput(contractx.ToolSearchProduct, map[string]any{
		"success": true,
		"message": "listo",
		"products": []any{
			map[string]any{
				"name":        "Plan Pro",
				"price":       250.0,
				"db_id":       "rec-99",
				"business_id": "biz-1",
				"_internal":   "x",
			},
		},
		"raw_response": "huge blob",
	})

	if _, leaked := out["raw_response"]; leaked {
		t.Fatal("fields outside the schema must be dropped")
	}
	products := asMapSlice(out["products"])
	if len(products) != 1 {
		t.Fatalf("products = %v", out["products"])
	}
	for _, key := range []string{"db_id", "business_id", "_internal"} {
		if _, leaked := products[0][key]; leaked {
			t.Fatalf("blocked field %q survived sanitization", key)
		}
	}
	if products[0]["name"] != "Plan Pro" {
		t.Fatalf("allowed field lost: %v", products[0])
	}
}

func TestSanitizeReplacesLeakyErrorWithGenericMessage(t *testing.T) {
	t.Parallel()

	out := sanitizeOutput(contractx.ToolPayment, map[string]any{
		"success": false,
		"error":   "internal server error: token=abc123",
	})
	msg, _ := out["message"].(string)
	if msg != "Ocurrió un error al procesar la solicitud" {
		t.Fatalf("message = %q, want generic error text", msg)
	}
}

func TestSanitizeKeepsSafeErrorText(t *testing.T) {
	t.Parallel()

	out := sanitizeOutput(contractx.ToolFollowup, map[string]any{
		"success": false,
		"error":   "el mensaje es obligatorio",
	})
	msg, _ := out["message"].(string)
	if !strings.Contains(msg, "el mensaje es obligatorio") {
		t.Fatalf("message = %q, safe error text should survive", msg)
	}
}

func TestSanitizeUnknownToolKeepsOnlySuccessAndMessage(t *testing.T) {
	t.Parallel()

	out := sanitizeOutput("mystery", map[string]any{
		"success": true,
		"message": "hecho",
		"secret":  "x",
	})
	if len(out) != 2 {
		t.Fatalf("out = %v, want success and message only", out)
	}
}

func TestSanitizeCustomToolUsesCustomSchema(t *testing.T) {
	t.Parallel()

	out := sanitizeOutput("custom_stock_check", map[string]any{
		"success": true,
		"data":    map[string]any{"stock": 4, "api_key": "k"},
		"message": "consulta completada",
	})
	data, _ := out["data"].(map[string]any)
	if data == nil || data["stock"] != 4 {
		t.Fatalf("data = %v", out["data"])
	}
	if _, leaked := data["api_key"]; leaked {
		t.Fatal("api_key must be stripped from custom tool data")
	}
}

func TestFormatResultProductList(t *testing.T) {
	t.Parallel()

	text := FormatResult(map[string]any{
		"success": true,
		"message": "Encontré 4 productos",
		"products": []any{
			map[string]any{"name": "A", "price": 10.0, "currency": "$"},
			map[string]any{"name": "B", "price": 20.0, "currency": "$"},
			map[string]any{"name": "C", "price": 30.0, "currency": "$"},
			map[string]any{"name": "D", "price": 40.0, "currency": "$"},
		},
	})
	if !strings.Contains(text, "Productos encontrados:") {
		t.Fatalf("text = %q", text)
	}
	if strings.Contains(text, "- D:") {
		t.Fatal("product list must truncate to three entries")
	}
}

func TestFormatResultPaymentLink(t *testing.T) {
	t.Parallel()

	text := FormatResult(map[string]any{
		"success":     true,
		"message":     "Link de pago generado",
		"payment_url": "https://pay.example/abc",
	})
	if !strings.Contains(text, "Link de pago: https://pay.example/abc") {
		t.Fatalf("text = %q", text)
	}
}

func TestFormatResultFailure(t *testing.T) {
	t.Parallel()

	text := FormatResult(map[string]any{"success": false, "message": "No se pudo"})
	if text != "No se pudo" {
		t.Fatalf("text = %q", text)
	}
	text = FormatResult(map[string]any{"success": false})
	if text != "Error desconocido" {
		t.Fatalf("text = %q", text)
	}
}
