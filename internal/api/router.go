package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/aeromission/internal/analysis"
	"github.com/yegors/aeromission/internal/websocket"
	"github.com/yegors/aeromission/pkg/logger"
)

// Router wires the API handlers and the progress stream
type Router struct {
	handler  *Handler
	wsServer *websocket.Server // nil disables /ws
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(service *analysis.Service, wsServer *websocket.Server, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(service, log),
		wsServer: wsServer,
		logger:   log.Named("router"),
	}
}

// Routes returns the HTTP handler serving every endpoint
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	h := rt.handler
	r.Get("/health", h.GetHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/segments", h.AddSegment)
				r.Put("/segments/{index}", h.ReplaceSegment)
				r.Delete("/segments/{index}", h.RemoveSegment)
				r.Post("/solve", h.Solve)
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{id}", h.GetRun)
			r.Delete("/{id}", h.DeleteRun)
			r.Get("/{id}/report", h.GetRunReport)
		})
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	return r
}

// requestLogger logs every request at debug level, failures at warn
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		}
		if ww.Status() >= http.StatusInternalServerError {
			rt.logger.Warn("Request failed", fields...)
			return
		}
		rt.logger.Debug("Request served", fields...)
	})
}
