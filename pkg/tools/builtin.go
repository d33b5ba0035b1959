package tools

// RegisterBuiltins installs the built-in tool set into a registry. The
// memory_search tool is bound to the given agent and session; searcher may
// be nil when memory is disabled.
func RegisterBuiltins(r *Registry, searcher MemorySearcher, agentID, sessionID int64) error {
	builtins := []Tool{
		NewDateTimeTool(),
		NewCalculatorTool(),
		NewWebSearchTool(),
		NewMemorySearchTool(searcher, agentID, sessionID),
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinNames lists the built-in tool names in registration order.
func BuiltinNames() []string {
	return []string{"get_datetime", "calculator", "web_search", "memory_search"}
}
