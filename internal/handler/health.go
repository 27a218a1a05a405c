package handler

import (
	"context"
	"net/http"

	"github.com/web3-frozen/stable-yield/internal/catalog"
)

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogStatus reports the opportunity cache state.
type CatalogStatus interface {
	Status() catalog.Status
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Ready fails when any dependency is unreachable. A stale catalog is
// reported but does not fail readiness since stale data is still served.
func Ready(cat CatalogStatus, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, p := range deps {
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		body := map[string]any{"status": "ready", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "not ready"
		}
		if cat != nil {
			body["catalog"] = cat.Status()
		}
		writeJSON(w, status, body)
	}
}
