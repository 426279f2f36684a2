package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/coreapi"
)

// Gateway binds the tool dependencies to their telemetry sink. A gate scoped
// to one conversation is derived from it per turn, so dispatches always carry
// the right identifiers and catalog.
type Gateway struct {
	deps      Deps
	telemetry contractx.Telemetry
}

func NewGateway(deps Deps, telemetry contractx.Telemetry) *Gateway {
	return &Gateway{deps: deps, telemetry: telemetry}
}

// ForConversation builds the gate for one lead, with the registry assembled
// from the built-in tools plus the profile's custom tools. contactPhone may
// be empty when the channel does not expose it.
func (gw *Gateway) ForConversation(profile contractx.BusinessProfile, leadID, contactPhone string) *Gate {
	registry := &Registry{defs: map[string]Definition{}}
	for _, def := range BuiltinDefinitions(gw.deps, profile) {
		if err := registry.Register(def); err != nil {
			log.Warn().Err(err).Msg("skipping tool definition")
		}
	}
	for _, cfg := range profile.CustomTools {
		if err := registry.Register(CustomDefinition(gw.deps.HTTPDoer(), cfg)); err != nil {
			log.Warn().Err(err).Str("tool", cfg.Name).Msg("skipping custom tool")
		}
	}
	return &Gate{
		gateway:      gw,
		registry:     registry,
		businessID:   profile.BusinessID,
		leadID:       leadID,
		contactPhone: contactPhone,
		now:          time.Now,
	}
}

// Gate dispatches tools for one conversation. Execute never returns an
// error: unknown tools, invalid input, and handler failures all end up as a
// failed record so the pipeline can narrate them.
type Gate struct {
	gateway      *Gateway
	registry     *Registry
	businessID   string
	leadID       string
	contactPhone string
	now          func() time.Time
}

// Registry exposes the per-conversation tool set, mainly for prompts.
func (g *Gate) Registry() *Registry { return g.registry }

// idScopedTools receive the conversation identifiers implicitly; the model
// never supplies them.
var idScopedTools = map[string]bool{
	contractx.ToolPayment:  true,
	contractx.ToolFollowup: true,
	contractx.ToolCRM:      true,
	contractx.ToolMedia:    true,
}

func (g *Gate) Execute(ctx context.Context, tool string, params map[string]any) contractx.ToolCallRecord {
	start := g.now()
	record := contractx.ToolCallRecord{
		ID:        uuid.NewString(),
		ToolName:  tool,
		ToolInput: params,
	}
	if params == nil {
		params = map[string]any{}
	}

	def, ok := g.registry.Lookup(tool)
	if !ok {
		return g.finish(record, start, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Tool '%s' no existe", tool),
		})
	}

	if idScopedTools[tool] {
		params["business_id"] = g.businessID
		params["lead_id"] = g.leadID
	}

	if def.Validate != nil {
		if err := def.Validate(params); err != nil {
			return g.finish(record, start, map[string]any{
				"success": false,
				"error":   err.Error(),
				"message": "Error de validación: " + err.Error(),
			})
		}
	}

	raw, err := def.Run(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("tool", tool).Msg("tool execution failed")
		raw = map[string]any{
			"success": false,
			"error":   err.Error(),
			"message": fmt.Sprintf("Error al ejecutar %s", tool),
		}
	}
	if raw == nil {
		raw = map[string]any{"success": false, "error": "resultado vacío"}
	}
	return g.finish(record, start, raw)
}

func (g *Gate) finish(record contractx.ToolCallRecord, start time.Time, raw map[string]any) contractx.ToolCallRecord {
	sanitized := sanitizeOutput(record.ToolName, raw)

	record.Success, _ = raw["success"].(bool)
	record.Error, _ = raw["error"].(string)
	record.ResultText = FormatResult(sanitized)
	record.DurationMS = g.now().Sub(start).Milliseconds()

	if tel := g.gateway.telemetry; tel != nil {
		entry := contractx.ToolExecutionLog{
			BusinessID:   g.businessID,
			ToolName:     record.ToolName,
			ToolInput:    record.ToolInput,
			Result:       record.ResultText,
			Success:      record.Success,
			Error:        record.Error,
			Duration:     time.Duration(record.DurationMS) * time.Millisecond,
			ContactPhone: g.contactPhone,
		}
		coreapi.FireAndForget("tool_telemetry", func(ctx context.Context) error {
			return tel.LogToolExecution(ctx, entry)
		})
	}
	return record
}
