package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

const (
	maxJSONBodyBytes   int64 = 1 << 20
	maxUploadBodyBytes int64 = 64 << 20
)

// Metrics is the slice of the metrics registry the router needs.
type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

type RouterDeps struct {
	Chat     ports.ChatService
	Indexer  ports.CatalogIndexer
	Uploader ports.CatalogUploader
	Runs     ports.IndexRunReader
	Metrics  Metrics
}

type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	deps RouterDeps
	opts RouterOptions
}

func NewRouter(deps RouterDeps, opts RouterOptions) *Router {
	return &Router{deps: deps, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(corsMiddleware)
	if rt.deps.Metrics != nil {
		r.Use(rt.deps.Metrics.Middleware)
	}

	r.Get("/health", rt.health)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst))

		r.With(maxBodyMiddleware(maxJSONBodyBytes)).Post("/index", rt.reindex)
		r.With(maxBodyMiddleware(maxJSONBodyBytes)).Post("/chat", rt.chat)
		r.With(maxBodyMiddleware(maxJSONBodyBytes)).Post("/chat/stream", rt.chatStream)

		r.Route("/v1", func(r chi.Router) {
			r.With(maxBodyMiddleware(maxUploadBodyBytes)).Post("/catalog", rt.uploadCatalog)
			r.Get("/index/runs/{runID}", rt.getRun)
		})
	})

	return r
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
