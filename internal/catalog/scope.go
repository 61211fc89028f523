// internal/catalog/scope.go
//
// A scope names which rules a view cares about: the rules extracted from a
// set of guideline documents, or every rule the server has (admin use).

package catalog

import (
	"sort"
	"strings"
)

// Scope is the membership filter for a catalog view.
type Scope struct {
	guidelineIDs map[string]struct{}
	unscoped     bool
}

// ScopeAll matches every rule (the admin/global catalog).
func ScopeAll() Scope {
	return Scope{unscoped: true}
}

// ScopeGuidelines matches rules extracted from any of the given guideline
// documents. An empty id list matches nothing.
func ScopeGuidelines(ids ...string) Scope {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return Scope{guidelineIDs: set}
}

// Unscoped reports whether the scope matches everything.
func (s Scope) Unscoped() bool {
	return s.unscoped
}

// Contains reports whether a rule with the given source guideline belongs
// to this scope. Directly authored rules (empty guideline id) belong only
// to the unscoped view.
func (s Scope) Contains(sourceGuidelineID string) bool {
	if s.unscoped {
		return true
	}
	_, ok := s.guidelineIDs[sourceGuidelineID]
	return ok
}

// single returns the sole guideline id when the scope names exactly one,
// which lets the fetch path use the server-side filter instead of a
// client-side scan.
func (s Scope) single() (string, bool) {
	if s.unscoped || len(s.guidelineIDs) != 1 {
		return "", false
	}
	for id := range s.guidelineIDs {
		return id, true
	}
	return "", false
}

// Key returns a stable cache key for the scope.
func (s Scope) Key() string {
	if s.unscoped {
		return "*"
	}
	ids := make([]string, 0, len(s.guidelineIDs))
	for id := range s.guidelineIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
