package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/davidemeka/ingesta/internal/api/handlers"
	appMiddleware "github.com/davidemeka/ingesta/internal/api/middlewares"
	"github.com/davidemeka/ingesta/internal/config"
	"github.com/davidemeka/ingesta/internal/core"
	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/core/ingest"
	"github.com/davidemeka/ingesta/internal/core/search"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, dbc db.DbClient, obj core.ObjectClient, pipeline *ingest.Pipeline, fuser *search.Fuser, llm core.LLMProvider) *Server {
	authHandler := handlers.NewAuthHandler(dbc, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(dbc, obj, pipeline, cfg)
	searchHandler := handlers.NewSearchHandler(fuser, llm)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTAuth(cfg.JWTSecret))
			protected.Post("/documents/upload", docHandler.UploadDocument)
			protected.Get("/documents", docHandler.GetDocuments)
			protected.Get("/documents/{document_id}", docHandler.GetDocument)
			protected.Delete("/documents/{document_id}", docHandler.DeleteDocument)
			protected.Delete("/documents", docHandler.DeleteDocumentsByTags)
			protected.Post("/search", searchHandler.Search)
			protected.Post("/ask", searchHandler.Ask)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
