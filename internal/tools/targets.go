package tools

import "github.com/nugget/ore-agent/internal/router"

// Targets projects the registry into routing targets, sorted by name.
// Rebuild after any registry change; the router does not cache.
func Targets(r *Registry) []router.Target {
	actions := r.All()
	targets := make([]router.Target, 0, len(actions))
	for _, a := range actions {
		targets = append(targets, router.Target{
			Name:        a.Name(),
			Type:        router.TypeTool,
			Description: a.Description(),
			Hints:       append([]string(nil), Hints(a)...),
		})
	}
	return targets
}
