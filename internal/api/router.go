package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/pkg/httpmiddleware"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Route paths served by NewRouter.
const (
	PathChat     = "/mercurio_chat"
	PathAnalyzer = "/mercurio_analyzer"
	PathHistory  = "/chat_history"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service    RelayService
	Logger     logger.Logger
	Middleware httpmiddleware.Config
	// WebSocket, when set, is mounted at WebSocketPath outside the
	// request-scoped middleware.
	WebSocket     http.Handler
	WebSocketPath string
}

// NewRouter builds the chi router for the relay.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewHandler(cfg.Service, cfg.Logger)

	// The relay routes answer preflights with fixed headers, so the CORS
	// middleware must not short-circuit OPTIONS requests.
	mw := cfg.Middleware
	if mw.CORS != nil {
		corsCfg := *mw.CORS
		corsCfg.OptionsPassthrough = true
		mw.CORS = &corsCfg
	}

	r := chi.NewRouter()
	httpmiddleware.ApplyToRouter(r, mw)

	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.RequestScoped(mw)...)

		r.Post(PathChat, h.RelayEndpoint(relay.RouteChat))
		r.Post(PathAnalyzer, h.RelayEndpoint(relay.RouteAnalyzer))
		r.Get(PathHistory, h.History)

		r.Options(PathChat, Options(MethodsRelay))
		r.Options(PathAnalyzer, Options(MethodsRelay))
		r.Options(PathHistory, Options(MethodsHistory))
	})

	if cfg.WebSocket != nil {
		path := cfg.WebSocketPath
		if path == "" {
			path = "/ws"
		}
		r.Get(path, cfg.WebSocket.ServeHTTP)
	}

	return r
}
