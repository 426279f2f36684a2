package tool

import (
	"net/http"
	"time"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/coreapi"
)

// Deps are the external collaborators the built-in tools dispatch to. Core
// may be nil in dev runs; handlers then fail soft with a user-facing message.
type Deps struct {
	Core       *coreapi.Client
	Products   contractx.ProductSearcher
	Knowledge  contractx.KnowledgeSearcher
	HTTPClient *http.Client
}

// HTTPDoer returns the client used for custom tool calls.
func (d Deps) HTTPDoer() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// BuiltinDefinitions assembles the standard tool set for one business
// profile. The catalog-dependent tools close over the profile.
func BuiltinDefinitions(deps Deps, profile contractx.BusinessProfile) []Definition {
	return []Definition{
		paymentDefinition(deps, profile),
		followupDefinition(deps),
		mediaDefinition(deps, profile),
		crmDefinition(deps),
		searchProductDefinition(deps),
		searchKnowledgeDefinition(deps, profile),
	}
}
