package contract

// Built-in tool names the pipeline can dispatch. Custom tools carry the
// "custom_" prefix followed by their configured name.
const (
	ToolSearchProduct   = "search_product"
	ToolSearchKnowledge = "search_knowledge"
	ToolPayment         = "payment"
	ToolFollowup        = "followup"
	ToolMedia           = "media"
	ToolCRM             = "crm"

	CustomToolPrefix = "custom_"
)

// ReadOnlyTool reports whether a tool is permitted from every stage because
// it cannot mutate commercial state.
func ReadOnlyTool(name string) bool {
	return name == ToolSearchProduct || name == ToolSearchKnowledge
}
