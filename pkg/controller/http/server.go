package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// Server is the REST controller over the knowledge base usecases
type Server struct {
	router *chi.Mux
	authn  Authenticator
}

type Options func(*Server)

// WithAuth wires the authenticator the API routes run behind. Without it
// every request is an anonymous minimal-tier requester.
func WithAuth(authn Authenticator) Options {
	return func(s *Server) {
		s.authn = authn
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.authn))

		r.Get("/auth/me", authMeHandler())

		r.Post("/query", queryHandler(uc))
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", ingestHandler(uc))
			r.Get("/{documentID}", getDocumentHandler(uc))
			r.Delete("/{documentID}", deleteDocumentHandler(uc))
		})
		r.Post("/correlate", correlateHandler(uc))
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
