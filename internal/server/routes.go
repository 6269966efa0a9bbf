package server

import "github.com/go-chi/chi/v5"

// RoleHeader is set by the trusted upstream proxy. The value "admin" waives
// the statement denylist.
const RoleHeader = "X-Vizly-Role"

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route("/v1/connections", func(r chi.Router) {
		r.Get("/", s.listConnections)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/execute", s.execute)
			r.Get("/schema", s.schema)
			r.Post("/test", s.test)
		})
	})
}
