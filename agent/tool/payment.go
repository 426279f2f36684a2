package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/coreapi"
)

// paymentDefinition generates a checkout link for the confirmed cart. The
// pipeline supplies items and total from commercial state, never from model
// free text.
func paymentDefinition(deps Deps, profile contractx.BusinessProfile) Definition {
	return Definition{
		Name:        contractx.ToolPayment,
		Description: "Genera un link de pago para los productos confirmados",
		Validate: func(params map[string]any) error {
			items := asMapSlice(params["items"])
			if len(items) == 0 {
				return errors.New("no hay productos confirmados para cobrar")
			}
			if total := floatParam(params, "total"); total <= 0 {
				return errors.New("el total a cobrar debe ser mayor a cero")
			}
			return nil
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			if deps.Core == nil {
				return nil, errors.New("servicio de pagos no disponible")
			}
			items := asMapSlice(params["items"])
			payItems := make([]coreapi.PaymentItem, 0, len(items))
			for _, item := range items {
				qty := intParam(item, "quantity", 1)
				if qty <= 0 {
					qty = 1
				}
				payItems = append(payItems, coreapi.PaymentItem{
					ProductID: stringParam(item, "product_id", ""),
					Name:      stringParam(item, "name", "Producto"),
					Quantity:  qty,
					UnitPrice: floatParam(item, "unit_price"),
				})
			}
			link, err := deps.Core.CreatePaymentLink(ctx, coreapi.PaymentLinkRequest{
				BusinessID: stringParam(params, "business_id", profile.BusinessID),
				LeadID:     stringParam(params, "lead_id", ""),
				Items:      payItems,
				Total:      floatParam(params, "total"),
				Currency:   stringParam(params, "currency", profile.Currency),
			})
			if err != nil {
				return nil, fmt.Errorf("crear link de pago: %w", err)
			}
			return map[string]any{
				"success":     true,
				"payment_url": link.URL,
				"payment_id":  link.PaymentID,
				"message":     "Link de pago generado",
			}, nil
		},
	}
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
