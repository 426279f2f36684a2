package tool

import (
	"context"
	"errors"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/coreapi"
)

func followupDefinition(deps Deps) Definition {
	return Definition{
		Name:        contractx.ToolFollowup,
		Description: "Programa un mensaje de seguimiento futuro para el lead",
		Validate: func(params map[string]any) error {
			return requireString(params, "message")
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			if deps.Core == nil {
				return nil, errors.New("servicio de seguimientos no disponible")
			}
			delay := intParam(params, "delay_hours", 24)
			if delay <= 0 {
				delay = 24
			}
			err := deps.Core.ScheduleFollowup(ctx, coreapi.FollowupRequest{
				BusinessID: stringParam(params, "business_id", ""),
				LeadID:     stringParam(params, "lead_id", ""),
				Message:    stringParam(params, "message", ""),
				DelayHours: delay,
				Reason:     stringParam(params, "reason", ""),
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":   true,
				"scheduled": true,
				"message":   "Seguimiento programado",
			}, nil
		},
	}
}
