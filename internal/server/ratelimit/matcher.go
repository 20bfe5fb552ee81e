package ratelimit

import "strings"

// MatchEndpoint returns the rule for method and path, preferring an exact
// path over the longest matching prefix. It returns nil when nothing matches.
func MatchEndpoint(method, path string, rules []EndpointConfig) *EndpointConfig {
	var best *EndpointConfig
	for i := range rules {
		rule := &rules[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path {
			return rule
		}
		if strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path) {
			if best == nil || len(rule.Path) > len(best.Path) {
				best = rule
			}
		}
	}
	return best
}
