package engine

import (
	"strings"
	"unicode"

	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/text"
)

// CanonicalizeHandle folds an edge handle or route label into a comparable
// slug: lowercase, diacritics stripped, non-alphanumeric runs to one hyphen.
func CanonicalizeHandle(handle string) string {
	normalized := text.Normalize(handle)
	var b strings.Builder
	b.Grow(len(normalized))
	lastHyphen := false
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen && b.Len() > 0 {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// routeAliases builds the canonical strings an edge handle may use to refer
// to a route: its id, its label and each of its phrases.
func routeAliases(route model.IntentRoute) map[string]bool {
	aliases := map[string]bool{route.Id: true}
	if canon := CanonicalizeHandle(route.Id); len(canon) > 0 {
		aliases[canon] = true
	}
	if canon := CanonicalizeHandle(route.Label); len(canon) > 0 {
		aliases[canon] = true
	}
	for _, phrase := range route.SplitPhrases() {
		if canon := CanonicalizeHandle(phrase); len(canon) > 0 {
			aliases[canon] = true
		}
	}
	return aliases
}

func findRoute(routes []model.IntentRoute, id string) *model.IntentRoute {
	for i := range routes {
		if routes[i].Id == id {
			return &routes[i]
		}
	}
	return nil
}

// matchEdgeToHandle reports whether the edge is selectable for the resolved
// route handle, either literally, canonically, or through a route alias.
func matchEdgeToHandle(edge model.Edge, preferredHandle string, route *model.IntentRoute) bool {
	handle := edge.Handle()
	if handle == preferredHandle {
		return true
	}
	canon := CanonicalizeHandle(handle)
	if canon == CanonicalizeHandle(preferredHandle) && len(canon) > 0 {
		return true
	}
	if route != nil && routeAliases(*route)[canon] {
		return true
	}
	return false
}

func isIntentBearing(node *model.Node) bool {
	if node.Type == model.NODE_INTENT {
		return true
	}
	return node.Type == model.NODE_TRIGGER && len(node.Data.IntentRoutes) > 0
}
