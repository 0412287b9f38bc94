package bridge

import (
	"net/http"
	"strings"
)

// OriginChecker returns a check that accepts requests whose Origin header
// is in allowed. Requests without an Origin come from non-browser clients
// and are accepted. An entry of "*" accepts every origin.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	allowAll := false
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
			continue
		}
		set[normalizeOrigin(origin)] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		return set[normalizeOrigin(origin)]
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}
