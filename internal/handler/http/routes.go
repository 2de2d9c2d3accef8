package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging)

	router.Get("/api/version", h.getVersion)

	router.Route("/api/replication", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Post("/resync", h.resync)
	})

	router.Route("/api/documents", func(r chi.Router) {
		r.Get("/", h.listDocuments)
		r.Get("/{id}", h.getDocument)
		r.Put("/{id}", h.putDocument)
		r.Delete("/{id}", h.deleteDocument)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
