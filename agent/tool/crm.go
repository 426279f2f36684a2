package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
)

func crmDefinition(deps Deps) Definition {
	return Definition{
		Name:        contractx.ToolCRM,
		Description: "Actualiza el CRM del negocio: etiquetas o etapa del lead",
		Validate: func(params map[string]any) error {
			action := stringParam(params, "action", "")
			switch action {
			case "add_tag":
				return requireString(params, "tag")
			case "update_stage":
				return requireString(params, "stage")
			case "":
				return errors.New("falta el parámetro \"action\"")
			default:
				return fmt.Errorf("acción %q no soportada", action)
			}
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			if deps.Core == nil {
				return nil, errors.New("servicio de CRM no disponible")
			}
			businessID := stringParam(params, "business_id", "")
			leadID := stringParam(params, "lead_id", "")

			switch stringParam(params, "action", "") {
			case "add_tag":
				tag := stringParam(params, "tag", "")
				if err := deps.Core.AssignTag(ctx, businessID, leadID, tag); err != nil {
					return nil, err
				}
				return map[string]any{
					"success": true,
					"status":  "tag_added",
					"message": fmt.Sprintf("Etiqueta %q asignada", tag),
				}, nil
			case "update_stage":
				stage := stringParam(params, "stage", "")
				if err := deps.Core.UpdateStage(ctx, businessID, leadID, stage); err != nil {
					return nil, err
				}
				return map[string]any{
					"success": true,
					"status":  "stage_updated",
					"message": fmt.Sprintf("Etapa actualizada a %q", stage),
				}, nil
			}
			return nil, errors.New("acción no soportada")
		},
	}
}
