package domain

import "strings"

// AccessContext is the structured data conditions are evaluated against. The
// authorization gate assembles it from the authenticated identity and request
// parameters; the resolver only performs dot-path lookups over it.
type AccessContext map[string]any

// Well-known access context keys.
const (
	ContextUserID          = "user_id"
	ContextUserType        = "user_type"
	ContextResourceOwnerID = "resource_owner_id"
	ContextResourceData    = "resource_data"
)

// Lookup resolves a dot-path against the context. A missing intermediate key
// yields (nil, false); condition operators treat that as an undefined value.
func (c AccessContext) Lookup(path string) (any, bool) {
	if c == nil || path == "" {
		return nil, false
	}

	var current any = map[string]any(c)
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			if ac, isCtx := current.(AccessContext); isCtx {
				node = map[string]any(ac)
			} else {
				return nil, false
			}
		}
		value, exists := node[part]
		if !exists {
			return nil, false
		}
		current = value
	}

	return current, true
}

// AccessDecision is the outcome of a permission check. Denial is a normal
// value, not an error; Reason is populated on denial for diagnostics.
// CheckFailed distinguishes a fail-closed denial caused by a store failure
// from an ordinary denial so transports can report it separately.
type AccessDecision struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	CheckFailed bool   `json:"-"`
}
