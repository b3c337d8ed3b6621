package http

import (
	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(searchUC usecase.SearchUC, capUC usecase.CapUC, indexUC usecase.IndexUC) {
	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerSearchRoutes(v1, NewSearchHandler(searchUC, r.logger))
		registerCapRoutes(v1, NewCapHandler(capUC, r.logger))
		registerIndexRoutes(v1, NewIndexHandler(indexUC, searchUC, r.logger))
	})
}

func registerSearchRoutes(router chi.Router, h *SearchHandler) {
	router.Post("/search", h.search)
}

func registerCapRoutes(router chi.Router, h *CapHandler) {
	router.Route("/caps", func(caps chi.Router) {
		caps.Post("/", h.registerNewCap)
		caps.Get("/{id}", h.getCap)
	})
}

func registerIndexRoutes(router chi.Router, h *IndexHandler) {
	router.Route("/index", func(idx chi.Router) {
		idx.Post("/rebuild", h.rebuild)
		idx.Get("/status", h.status)
		idx.Post("/reload", h.reload)
	})
}
