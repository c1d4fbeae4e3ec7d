package sso

import (
	"errors"
	"fmt"
	"strings"
)

// RouteRule binds a route prefix to the module registered under that route in
// the SSO schema.
type RouteRule struct {
	Prefix string
	Module string
}

// RouteTable maps request paths to modules. It is built once at startup from
// configuration; paths that match no rule are public by design, so callers
// wanting strict default-deny must register every protected prefix.
type RouteTable struct {
	rules []RouteRule
}

// NewRouteTable validates and normalizes the rules.
func NewRouteTable(rules []RouteRule) (*RouteTable, error) {
	normalized := make([]RouteRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		prefix := strings.TrimRight(strings.TrimSpace(r.Prefix), "/")
		module := strings.TrimSpace(r.Module)
		if prefix == "" || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		if module == "" {
			return nil, errors.New("route rule is missing a module")
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("duplicate route prefix %q", prefix)
		}
		seen[prefix] = struct{}{}
		normalized = append(normalized, RouteRule{Prefix: prefix, Module: module})
	}
	return &RouteTable{rules: normalized}, nil
}

// Resolve returns the module guarding path, choosing the longest matching
// prefix. Matching respects path-segment boundaries: /bi-refis never captures
// /bi-refis-percentuais.
func (t *RouteTable) Resolve(path string) (string, bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}

	var (
		best    string
		bestLen = -1
	)
	for _, r := range t.rules {
		if matchesSegmentPrefix(path, r.Prefix) && len(r.Prefix) > bestLen {
			best = r.Module
			bestLen = len(r.Prefix)
		}
	}
	return best, bestLen >= 0
}

func matchesSegmentPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix) && path[len(prefix)] == '/'
}
