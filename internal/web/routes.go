package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	log := s.deps.Log
	facesHandler := handlers.NewFacesHandler(s.deps.Engine, s.deps.Storage, log)
	albumsHandler := handlers.NewAlbumsHandler(s.deps.Engine)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Engine, log)
	imagesHandler := handlers.NewImagesHandler(s.deps.Storage)
	usersHandler := handlers.NewUsersHandler(s.deps.Enrollment, log)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Faces
		r.Post("/faces/upload", facesHandler.Upload)
		r.Post("/faces/bootstrap", facesHandler.Bootstrap)
		r.Post("/faces/override", facesHandler.Override)
		r.Get("/faces/{faceID}", facesHandler.Get)
		r.Get("/faces/{faceID}/similar", facesHandler.Similar)
		r.Get("/faces/{faceID}/thumbnail", facesHandler.Thumbnail)

		// Identities
		r.Post("/identities/merge", identitiesHandler.Merge)
		r.Post("/identities/rebuild", identitiesHandler.Rebuild)
		r.Get("/stats", identitiesHandler.Stats)
		r.Get("/config", configHandler.Get)

		// Albums
		r.Get("/albums", albumsHandler.List)
		r.Get("/albums/{albumID}", albumsHandler.Get)

		// Originals
		r.Get("/images", imagesHandler.List)
		r.Get("/images/{name}", imagesHandler.Get)

		// Enrollment
		if s.deps.Enrollment != nil {
			r.Get("/users", usersHandler.List)
			r.Post("/users/{userID}/register", usersHandler.Register)
			r.Post("/users/set-name", usersHandler.SetName)
			r.Post("/attendance/check", usersHandler.CheckAttendance)
		}
	})
}
