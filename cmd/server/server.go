package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/microblog/internal/broker"
	config "example.com/microblog/internal/init"
	"example.com/microblog/internal/logger"
	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/middleware"
	"example.com/microblog/internal/store"
	"example.com/microblog/internal/token"
)

type Server struct {
	store       store.StoreInterface
	kafkaWriter appkafka.KafkaWriter
	mailer      mailer.Mailer
	signer      *token.Signer
	cfg         *config.Config
}

var logg = logger.New()

// New wires the server's dependencies. Everything is injected; nothing
// is read from package-level state.
func New(st store.StoreInterface, writer appkafka.KafkaWriter, m mailer.Mailer, signer *token.Signer, cfg *config.Config) *Server {
	return &Server{
		store:       st,
		kafkaWriter: writer,
		mailer:      m,
		signer:      signer,
		cfg:         cfg,
	}
}

// routes builds the HTTP mux. Split out so tests can mount the same
// routing the real server uses.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public endpoints
	mux.Handle("POST /users", http.HandlerFunc(s.registerHandler))
	mux.Handle("POST /login", http.HandlerFunc(s.loginHandler))
	mux.Handle("POST /logout", http.HandlerFunc(s.logoutHandler))
	mux.Handle("POST /reset_password_request", http.HandlerFunc(s.resetPasswordRequestHandler))
	mux.Handle("POST /reset_password", http.HandlerFunc(s.resetPasswordHandler))

	// JWT-protected endpoints
	mux.Handle("GET /{$}", s.authed(s.getFeedHandler))
	mux.Handle("GET /index", s.authed(s.getFeedHandler))
	mux.Handle("GET /feed", s.authed(s.getFeedHandler))
	mux.Handle("POST /posts", s.authed(s.createPostHandler))
	mux.Handle("GET /explore", s.authed(s.exploreHandler))
	mux.Handle("GET /user/{username}", s.authed(s.userProfileHandler))
	mux.Handle("PUT /edit_profile", s.authed(s.editProfileHandler))
	mux.Handle("POST /follow/{username}", s.authed(s.followHandler))
	mux.Handle("POST /unfollow/{username}", s.authed(s.unfollowHandler))

	return mux
}

// authed wraps a handler with JWT auth and stamps the user's last_seen
// on every authenticated request, best-effort.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.JWTAuth(s.signer.Secret(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			if err := s.store.TouchLastSeen(r.Context(), userID); err != nil {
				logg.Error("server", "Failed to update last_seen", err)
			}
		}
		h(w, r)
	}))
}

// Run starts the HTTP server and blocks until ctx is canceled, then
// shuts down gracefully.
func Run(ctx context.Context, st store.StoreInterface, writer appkafka.KafkaWriter, m mailer.Mailer, signer *token.Signer, cfg *config.Config) {
	s := New(st, writer, m, signer, cfg)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			logg.Info("server", "Starting HTTPS server on "+cfg.ServerAddr)
			if err := srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey); err != nil && err != http.ErrServerClosed {
				logg.Error("server", "Server stopped unexpectedly", err)
			}
			return
		}
		logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
