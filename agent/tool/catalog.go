package tool

import (
	"context"
	"sort"
	"strings"

	contractx "github.com/vendra/salescore/agent/contract"
)

// CatalogSearcher ranks catalog products by token overlap with the query.
// It is the wiring fallback for deployments without a similarity-search
// service; the ranking is intentionally naive.
type CatalogSearcher struct {
	products []contractx.Product
}

var _ contractx.ProductSearcher = (*CatalogSearcher)(nil)

func NewCatalogSearcher(products []contractx.Product) *CatalogSearcher {
	return &CatalogSearcher{products: products}
}

func (s *CatalogSearcher) Search(ctx context.Context, query string, max int) ([]contractx.ProductMatch, error) {
	terms := tokenize(query)
	if len(terms) == 0 || max <= 0 {
		return nil, nil
	}

	matches := make([]contractx.ProductMatch, 0, len(s.products))
	for _, p := range s.products {
		score := overlap(terms, tokenize(p.Name+" "+p.Description+" "+p.Category))
		if score > 0 {
			matches = append(matches, contractx.ProductMatch{Product: p, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > max {
		matches = matches[:max]
	}
	return matches, nil
}

func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		field = strings.Trim(field, ".,;:¿?¡!\"'()")
		if len(field) > 2 {
			tokens[field] = true
		}
	}
	return tokens
}

func overlap(query, doc map[string]bool) float64 {
	hits := 0
	for term := range query {
		if doc[term] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
