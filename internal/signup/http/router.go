// Package http is the control surface: start signup batches, stream worker
// progress over SSE and query persisted accounts.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	"github.com/pixelgrid/signupmill/internal/signup/service"
	"github.com/pixelgrid/signupmill/internal/signup/store"
	"github.com/pixelgrid/signupmill/pkg/broadcast"
	"github.com/pixelgrid/signupmill/pkg/httpx"
	"github.com/pixelgrid/signupmill/pkg/slogx"

	_ "github.com/pixelgrid/signupmill/api/signup" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Launcher *service.Launcher
	Events   *broadcast.Broadcaster[domain.ProgressEvent]
	MaxBatch int
}

func NewRouter(
	buildVersion string,
	st store.Store,
	corsOrigins []string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(corsOrigins),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSignups()
	r.registerAccounts()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Signup Mill API
//	@version		0.1.0
//	@description	Control surface for the automated signup-and-verify pipeline:
//	@description	schedule batches of signup workers, stream their progress and
//	@description	read back the accounts and session tokens they captured.
//
//	@contact.name	PixelGrid Team
//	@contact.url	https://github.com/pixelgrid/signupmill
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSignups() {
	signupsHandler := &SignupsHandler{
		Launcher: r.Launcher,
		MaxBatch: r.MaxBatch,
		Logger:   r.logger,
	}
	streamHandler := &StreamHandler{
		Events: r.Events,
		Logger: r.logger,
	}

	// POST /v1/signups - moderate limit, each call fans out real traffic
	r.Mux.Handle("POST /v1/signups",
		httpx.Chain(http.HandlerFunc(signupsHandler.HandlePost),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /v1/signups/stream - lenient limit, connections are long-lived
	r.Mux.Handle("GET /v1/signups/stream",
		httpx.Chain(http.HandlerFunc(streamHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	accountsHandler := &AccountsHandler{
		Store:  r.store,
		Logger: r.logger,
	}

	r.Mux.Handle("GET /v1/accounts",
		httpx.Chain(http.HandlerFunc(accountsHandler.HandleList),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/accounts/{id}/tokens",
		httpx.Chain(http.HandlerFunc(accountsHandler.HandleTokens),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
