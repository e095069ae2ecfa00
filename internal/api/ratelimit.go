package api

import (
	"net/http"

	"encoding/json/v2"
)

// rateLimitImports throttles commit requests per client address. Preview and
// the read endpoints are not limited: only commit does storage writes.
func (s *Server) rateLimitImports(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/imports" {
			if !s.importLimiter.Allow(r.RemoteAddr) {
				s.logger.Warn("import rate limit exceeded", "remote", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				body, _ := json.Marshal(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many import requests, slow down",
				})
				_, _ = w.Write(body)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
