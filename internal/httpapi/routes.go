package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pokedraft/server/internal/hub"
	"github.com/pokedraft/server/internal/ws"
)

// SetupRoutes wires the socket endpoint, the health probe, and the static
// client assets. Everything stateful goes through the injected hub; room
// creation rides the socket, so there is no REST surface beyond these.
func SetupRoutes(h *hub.Hub, bounds ws.Bounds, staticDir string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, bounds, log))
	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
