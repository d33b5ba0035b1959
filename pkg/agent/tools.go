package agent

import (
	"github.com/mrvn-ai/mrvn/pkg/config"
)

// AllowedTools resolves the tool names an agent may use out of the
// registered set: the profile's base set plus tools_allow, minus
// tools_deny, intersected with what is actually registered. Deny wins
// over both the profile and allow. The result keeps the order of
// registered.
func AllowedTools(cfg *config.AgentConfig, registered []string) []string {
	base := profileSet(cfg.ToolProfile, registered)
	for _, name := range cfg.ToolsAllow {
		base[name] = struct{}{}
	}
	for _, name := range cfg.ToolsDeny {
		delete(base, name)
	}

	allowed := make([]string, 0, len(base))
	for _, name := range registered {
		if _, ok := base[name]; ok {
			allowed = append(allowed, name)
		}
	}
	return allowed
}

// profileSet expands a tool profile into its base names. Profiles are
// cumulative, each tier adding to the one below; full means everything
// registered. Unknown profiles get the minimal set.
func profileSet(profile config.ToolProfile, registered []string) map[string]struct{} {
	set := make(map[string]struct{}, 4)
	switch profile {
	case config.ProfileFull:
		for _, name := range registered {
			set[name] = struct{}{}
		}
	case config.ProfileMessaging:
		set["memory_search"] = struct{}{}
		fallthrough
	case config.ProfileCoding:
		set["web_search"] = struct{}{}
		fallthrough
	default:
		set["get_datetime"] = struct{}{}
		set["calculator"] = struct{}{}
	}
	return set
}

// effectiveTools resolves this turn's tool names. The per-call tool_names
// option narrows the agent's effective set, never widens it. An empty
// result disables tools for the turn.
func (r *Runner) effectiveTools(cfg *config.AgentConfig, options runOptions) []string {
	if !options.enableTools {
		return nil
	}

	effective := AllowedTools(cfg, r.tools.List())
	if options.toolNames == nil {
		return effective
	}

	requested := make(map[string]bool, len(options.toolNames))
	for _, name := range options.toolNames {
		requested[name] = true
	}
	narrowed := make([]string, 0, len(effective))
	for _, name := range effective {
		if requested[name] {
			narrowed = append(narrowed, name)
		}
	}
	return narrowed
}
