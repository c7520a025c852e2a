package eventapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/illmade-knight/go-scoutsync/pkg/microservice"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the event API service.
type ServiceConfig struct {
	HTTPPort string
	// StaticDir, when set, is served as the app frontend with an SPA
	// fallback to its index.html for unknown non-API GET paths.
	StaticDir string
}

// Service hosts the event API (and optionally the static frontend) on a
// BaseServer.
type Service struct {
	*microservice.BaseServer
	logger zerolog.Logger
}

// NewService wires the API onto a new BaseServer.
func NewService(cfg *ServiceConfig, api *API, logger zerolog.Logger) *Service {
	base := microservice.NewBaseServer(logger, cfg.HTTPPort)
	api.Register(base.Mux())

	if cfg.StaticDir != "" {
		base.Mux().Handle("/", spaHandler(cfg.StaticDir))
	}

	return &Service{
		BaseServer: base,
		logger:     logger.With().Str("component", "EventAPIService").Logger(),
	}
}

// Start begins serving requests.
func (s *Service) Start(_ context.Context) error {
	return s.BaseServer.Start()
}

// spaHandler serves files from dir, falling back to index.html for GET paths
// that match no file, so deep links resolve to the app shell.
func spaHandler(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}

		requested := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
