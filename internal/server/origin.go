package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originPolicy decides which browser origins may open a websocket.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			p.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("origin", origin).Msg("Ignoring invalid origin in configuration")
			continue
		}
		p.allowed[normalized] = struct{}{}
	}

	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// check is a websocket.Upgrader CheckOrigin func. With "*" configured any
// origin, including none, is accepted.
func (p *originPolicy) check(r *http.Request) bool {
	if p.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if normalized, ok := normalizeOrigin(originHeader); ok {
		if _, exists := p.allowed[normalized]; exists {
			return true
		}
	}

	log.Warn().Str("origin", originHeader).Msg("Blocked WebSocket connection from disallowed origin")
	return false
}
