package tool

import (
	"strings"

	contractx "github.com/vendra/salescore/agent/contract"
)

// outputSchemas lists, per tool, the fields the model is allowed to see in a
// tool result. Anything not listed stays in logs only.
var outputSchemas = map[string][]string{
	contractx.ToolSearchProduct:   {"products", "message"},
	contractx.ToolPayment:         {"payment_url", "message"},
	contractx.ToolFollowup:        {"scheduled", "message"},
	contractx.ToolMedia:           {"sent", "media_url", "message"},
	contractx.ToolCRM:             {"status", "message"},
	contractx.ToolSearchKnowledge: {"context", "message"},
	"custom_tool":                 {"result", "data", "message"},
}

// blockedFields are dropped from every nested object in a tool result before
// it can reach the model.
var blockedFields = map[string]bool{
	"id": true, "ids": true, "_id": true, "internal_id": true,
	"business_id": true, "lead_id": true, "user_id": true,
	"token": true, "tokens": true, "api_key": true, "secret": true,
	"password": true, "auth": true,
	"metadata": true, "_metadata": true, "internal": true, "_internal": true,
	"stack": true, "stacktrace": true, "traceback": true, "error_details": true,
	"raw": true, "raw_response": true, "debug": true, "_debug": true,
	"database_id": true, "db_id": true, "record_id": true,
}

var blockedPatterns = []string{
	"traceback", "stacktrace", "at line",
	"internal server error", "database error",
	"api_key=", "token=", "secret=",
	"password=", "auth=",
	"record_id=", "document_id=",
}

func containsBlockedInfo(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// sanitizeOutput filters a raw tool result down to the fields the model may
// observe. Unknown tools keep only success and message; error text wins a
// generic message when it leaks technical detail.
func sanitizeOutput(toolName string, raw map[string]any) map[string]any {
	schemaName := toolName
	if strings.HasPrefix(toolName, contractx.CustomToolPrefix) {
		schemaName = "custom_tool"
	}
	schema, ok := outputSchemas[schemaName]

	success, _ := raw["success"].(bool)
	if !ok {
		message, _ := raw["message"].(string)
		if message == "" {
			message = "Operación completada"
		}
		return map[string]any{"success": success, "message": message}
	}

	sanitized := map[string]any{"success": success}
	for _, field := range schema {
		value, present := raw[field]
		if !present || value == nil {
			continue
		}
		sanitized[field] = sanitizeValue(value)
	}

	if _, hasMessage := sanitized["message"]; !hasMessage {
		if success {
			sanitized["message"] = "Operación exitosa"
		} else {
			errText, _ := raw["error"].(string)
			if errText == "" {
				errText = "Error desconocido"
			}
			if containsBlockedInfo(errText) {
				sanitized["message"] = "Ocurrió un error al procesar la solicitud"
			} else {
				sanitized["message"] = "Error: " + errText
			}
		}
	}
	return sanitized
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeMap(v)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, sanitizeValue(item))
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, sanitizeMap(item))
		}
		return out
	default:
		return v
	}
}

func sanitizeMap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if blockedFields[strings.ToLower(key)] || strings.HasPrefix(key, "_") {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			out[key] = sanitizeMap(v)
		case []any:
			out[key] = sanitizeValue(v)
		default:
			if s, ok := v.(string); ok && containsBlockedInfo(s) {
				continue
			}
			out[key] = v
		}
	}
	return out
}
