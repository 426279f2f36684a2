package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/vendra/salescore/agent/contract"
)

const (
	maxProductResults   = 5
	maxKnowledgeResults = 3
)

// searchProductDefinition runs a catalog similarity search. Only commercial
// fields reach the model; the ranking lives behind the searcher interface.
func searchProductDefinition(deps Deps) Definition {
	return Definition{
		Name:        contractx.ToolSearchProduct,
		Description: "Busca productos del catálogo relevantes a la consulta",
		Validate: func(params map[string]any) error {
			return requireString(params, "query")
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			if deps.Products == nil {
				return nil, errors.New("búsqueda de productos no disponible")
			}
			limit := intParam(params, "max_results", maxProductResults)
			if limit <= 0 || limit > maxProductResults {
				limit = maxProductResults
			}
			matches, err := deps.Products.Search(ctx, stringParam(params, "query", ""), limit)
			if err != nil {
				return nil, err
			}
			products := make([]map[string]any, 0, len(matches))
			for _, m := range matches {
				entry := map[string]any{
					"product_id": m.Product.ID,
					"name":       m.Product.Name,
					"price":      m.Product.Price,
					"currency":   m.Product.Currency,
				}
				if m.Product.Description != "" {
					entry["description"] = m.Product.Description
				}
				if m.Product.Stock != nil {
					entry["in_stock"] = *m.Product.Stock > 0
				}
				products = append(products, entry)
			}
			message := fmt.Sprintf("Encontré %d productos", len(products))
			if len(products) == 0 {
				message = "No encontré productos que coincidan con la búsqueda"
			}
			return map[string]any{
				"success":  true,
				"products": products,
				"message":  message,
			}, nil
		},
	}
}

func searchKnowledgeDefinition(deps Deps, profile contractx.BusinessProfile) Definition {
	return Definition{
		Name:        contractx.ToolSearchKnowledge,
		Description: "Consulta la base de conocimiento del negocio",
		Validate: func(params map[string]any) error {
			return requireString(params, "query")
		},
		Run: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			if deps.Knowledge == nil {
				return nil, errors.New("base de conocimiento no disponible")
			}
			_, kbContext, err := deps.Knowledge.SearchKnowledge(ctx,
				profile.BusinessID, stringParam(params, "query", ""), maxKnowledgeResults)
			if err != nil {
				return nil, err
			}
			message := "Información encontrada"
			if kbContext == "" {
				message = "No encontré información sobre eso"
			}
			return map[string]any{
				"success": true,
				"context": kbContext,
				"message": message,
			}, nil
		},
	}
}
