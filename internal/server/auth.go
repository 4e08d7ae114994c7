package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAuth wraps a handler with bearer token authentication. Every
// rejection carries the same message so callers cannot distinguish a
// wrong token from a missing one; the metric label records the reason.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.denyAuth(w, "missing_header")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			h.denyAuth(w, "invalid_format")
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			h.denyAuth(w, "empty_token")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			h.denyAuth(w, "invalid_token")
			return
		}

		next(w, r)
	}
}

func (h *Handler) denyAuth(w http.ResponseWriter, reason string) {
	AuthFailuresTotal.WithLabelValues(reason).Inc()
	w.Header().Set("WWW-Authenticate", `Bearer`)
	h.writeJSONError(w, http.StatusForbidden, "invalid or expired token")
}
