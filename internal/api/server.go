package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/auth"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/live"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/monitor"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
)

// RESTServer represents the dashboard REST API server
type RESTServer struct {
	config   *config.Config
	settings *config.Manager
	store    storage.Store
	auth     *auth.JWTManager
	table    *monitor.StateTable
	pings    *monitor.PingCoordinator
	hub      *live.Hub
	router   chi.Router
	server   *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, settings *config.Manager, store storage.Store,
	table *monitor.StateTable, pings *monitor.PingCoordinator, hub *live.Hub) *RESTServer {

	s := &RESTServer{
		config:   cfg,
		settings: settings,
		store:    store,
		auth:     auth.NewJWTManager(&cfg.JWT),
		table:    table,
		pings:    pings,
		hub:      hub,
		router:   chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /stream and /ws are long-lived connections
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr

	// 挂载静态文件服务 (Web UI)
	webDir := s.config.Web.StaticDir
	if envWebDir := os.Getenv("WEB_DIR"); envWebDir != "" {
		webDir = envWebDir
	}

	if _, err := os.Stat(webDir); os.IsNotExist(err) {
		log.Warn().Str("dir", webDir).Msg("Web directory not found, Web UI will not be available")
	} else {
		log.Info().Str("dir", webDir).Msg("Serving Web UI from directory")

		// 非 API 路径提供静态文件, 其余交给 chi 路由
		s.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				s.router.ServeHTTP(w, r)
				return
			}

			fs := http.FileServer(http.Dir(webDir))

			// 无扩展名的路径回落到 index.html, 支持前端路由
			if r.URL.Path == "/" || !strings.Contains(r.URL.Path, ".") {
				http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
				return
			}

			fs.ServeHTTP(w, r)
		})
	}

	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the route tree for tests
func (s *RESTServer) Router() http.Handler {
	return s.router
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const claimsContextKey contextKey = "claims"
