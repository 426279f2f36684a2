package tool

import (
	"fmt"
	"strings"
)

// FormatResult renders a sanitized tool result as the text block handed to
// the narrator. Product lists are truncated to the top three hits; payment
// and media results surface their link.
func FormatResult(result map[string]any) string {
	success, _ := result["success"].(bool)
	message, _ := result["message"].(string)

	if !success {
		if message != "" {
			return message
		}
		if errText, ok := result["error"].(string); ok && errText != "" {
			return errText
		}
		return "Error desconocido"
	}
	if message == "" {
		message = "Operación exitosa"
	}

	if products := asMapSlice(result["products"]); len(products) > 0 {
		if len(products) > 3 {
			products = products[:3]
		}
		lines := make([]string, 0, len(products))
		for _, p := range products {
			name, _ := p["name"].(string)
			if name == "" {
				name = "Producto"
			}
			currency, _ := p["currency"].(string)
			if currency == "" {
				currency = "$"
			}
			price := "N/A"
			if v, ok := p["price"]; ok && v != nil {
				price = fmt.Sprintf("%v", v)
			}
			lines = append(lines, fmt.Sprintf("- %s: %s%s", name, currency, price))
		}
		return fmt.Sprintf("%s\n\nProductos encontrados:\n%s", message, strings.Join(lines, "\n"))
	}

	if url, ok := result["payment_url"].(string); ok && url != "" {
		return fmt.Sprintf("%s\n\nLink de pago: %s", message, url)
	}
	if url, ok := result["media_url"].(string); ok && url != "" {
		return fmt.Sprintf("%s\n\nURL: %s", message, url)
	}
	return message
}

func asMapSlice(value any) []map[string]any {
	switch v := value.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
