package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
)

// mediaDefinition sends a product image from the catalog. The product must
// exist and carry an image URL; the model cannot supply arbitrary URLs.
func mediaDefinition(deps Deps, profile contractx.BusinessProfile) Definition {
	return Definition{
		Name:        contractx.ToolMedia,
		Description: "Envía la imagen de un producto del catálogo",
		Validate: func(params map[string]any) error {
			return requireString(params, "product_id")
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			productID := stringParam(params, "product_id", "")
			product, ok := profile.FindProduct(productID)
			if !ok {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("producto %q no está en el catálogo", productID),
					"message": "No encontré ese producto en el catálogo",
				}, nil
			}
			if product.ImageURL == "" {
				return map[string]any{
					"success": false,
					"error":   "producto sin imagen",
					"message": "Ese producto no tiene imagen disponible",
				}, nil
			}
			if deps.Core == nil {
				return nil, errors.New("servicio de medios no disponible")
			}
			caption := stringParam(params, "caption", product.Name)
			err := deps.Core.SendMedia(ctx,
				stringParam(params, "business_id", profile.BusinessID),
				stringParam(params, "lead_id", ""),
				product.ImageURL, caption)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":   true,
				"sent":      true,
				"media_url": product.ImageURL,
				"message":   "Imagen enviada",
			}, nil
		},
	}
}
