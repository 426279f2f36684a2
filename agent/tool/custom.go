package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	contractx "github.com/vendra/salescore/agent/contract"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// interpolate replaces {{param}} placeholders in strings, maps, and slices.
// Placeholders without a matching parameter are left untouched.
func interpolate(template any, params map[string]any) any {
	switch t := template.(type) {
	case string:
		return placeholderRe.ReplaceAllStringFunc(t, func(match string) string {
			key := placeholderRe.FindStringSubmatch(match)[1]
			value, ok := params[key]
			if !ok || value == nil {
				return match
			}
			return fmt.Sprintf("%v", value)
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = interpolate(v, params)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, interpolate(item, params))
		}
		return out
	}
	return template
}

func interpolateString(template string, params map[string]any) string {
	return interpolate(template, params).(string)
}

// CustomDefinition turns a user-configured HTTP tool into a registry entry
// named custom_<name>.
func CustomDefinition(client *http.Client, cfg contractx.CustomToolConfig) Definition {
	return Definition{
		Name:        contractx.CustomToolPrefix + cfg.Name,
		Description: cfg.Description,
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			method := strings.ToUpper(strings.TrimSpace(cfg.Method))
			if method == "" {
				method = http.MethodPost
			}
			url := interpolateString(cfg.URL, params)

			var body io.Reader
			if cfg.BodyTemplate != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
				payload, err := json.Marshal(interpolate(cfg.BodyTemplate, params))
				if err != nil {
					return nil, fmt.Errorf("construir cuerpo de la tool: %w", err)
				}
				body = bytes.NewReader(payload)
			}

			req, err := http.NewRequestWithContext(ctx, method, url, body)
			if err != nil {
				return nil, err
			}
			for key, value := range cfg.Headers {
				req.Header.Set(key, interpolateString(value, params))
			}
			if req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("status %d", resp.StatusCode),
					"message": fmt.Sprintf("La operación %s no se pudo completar", cfg.Name),
				}, nil
			}

			result := map[string]any{
				"success": true,
				"message": "Operación completada",
			}
			var data map[string]any
			if err := json.Unmarshal(raw, &data); err == nil {
				result["data"] = data
				if msg, ok := data["message"].(string); ok && msg != "" {
					result["message"] = msg
				}
			} else if text := strings.TrimSpace(string(raw)); text != "" {
				result["result"] = text
			}
			return result, nil
		},
	}
}
