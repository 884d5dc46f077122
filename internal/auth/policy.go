package auth

import (
	"net/http"
	"strings"
)

// Policy determines the module a request needs access to.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredModule resolves the module guarding the request.
// Finer action checks happen in the services.
func (p Policy) RequiredModule(r *http.Request) (Module, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/api/v1/grants/") && strings.Contains(path, "/report"):
		return ModuleReports, true
	case strings.HasPrefix(path, "/api/v1/grants/") && strings.Contains(path, "/lines"):
		return ModuleBudgetPlanning, true
	case path == "/api/v1/grants" || strings.HasPrefix(path, "/api/v1/grants/"):
		return ModuleGrants, true
	case path == "/api/v1/engagements" || strings.HasPrefix(path, "/api/v1/engagements/"):
		return ModuleEngagements, true
	case path == "/api/v1/payments" || strings.HasPrefix(path, "/api/v1/payments/"):
		return ModuleTracking, true
	}

	if strings.HasPrefix(path, "/api/") {
		return ModuleGrants, true
	}
	return "", false
}
