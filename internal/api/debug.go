package api

import (
	"net/http"
	"time"

	"routeplanner/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.admin(w, r); !ok {
		return
	}
	info := map[string]any{
		"build": buildinfo.Info(),
		"host":  buildinfo.HostInfo(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":            s.Config.Port,
			"authMode":        s.Config.Auth.Mode,
			"rateRps":         s.Config.Rate.RPS,
			"rateBurst":       s.Config.Rate.Burst,
			"webhookAttempts": s.Config.Webhooks.MaxAttempts,
			"databaseDriver":  s.storeKind,
			"hasRedis":        s.Config.Redis.URL != "",
			"solverDefaults":  s.Defaults,
		},
	}
	writeJSON(w, http.StatusOK, info)
}
