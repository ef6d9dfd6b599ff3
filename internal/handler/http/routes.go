package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)
	router.Use(withGZip)

	router.Route("/_matrix/client/v3/room_keys", func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/version", func(r chi.Router) {
			r.Post("/", h.createVersion)
			r.Get("/", h.getLatestVersion)

			r.Route("/{version}", func(r chi.Router) {
				r.Get("/", h.getVersion)
				r.Put("/", h.updateVersion)
				r.Delete("/", h.deleteVersion)
			})
		})

		// key routes address a backup through the ?version= query parameter
		r.Route("/keys", func(r chi.Router) {
			r.Put("/", h.putKeys)
			r.Get("/", h.getKeys)
			r.Delete("/", h.deleteKeys)

			r.Route("/{roomID}", func(r chi.Router) {
				r.Put("/", h.putRoomKeys)
				r.Get("/", h.getRoomKeys)
				r.Delete("/", h.deleteRoomKeys)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Put("/", h.putKey)
					r.Get("/", h.getKey)
					r.Delete("/", h.deleteKey)
				})
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMatrixError(w, r, http.StatusNotFound, errCodeUnrecognized, "unrecognized request")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMatrixError(w, r, http.StatusMethodNotAllowed, errCodeUnrecognized, "unrecognized request method")
	})

	return router
}
