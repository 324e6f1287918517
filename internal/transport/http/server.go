package http

import (
	"context"
	"log/slog"
	"net/http"

	"levelup-sidequest/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options carries transport settings.
type Options struct {
	CORSOrigins  []string
	CookieName   string
	SecureCookie bool
	AdminKey     string
	// Health is called by /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// Server exposes the game, registration and admin use cases over HTTP.
type Server struct {
	quests       *app.QuestService
	auth         *app.AuthService
	registration *app.RegistrationService
	leaderboard  *app.LeaderboardService
	admin        *app.QuestAdmin
	logger       *slog.Logger
	opts         Options
	ws           *LeaderboardWS
}

func NewServer(quests *app.QuestService, auth *app.AuthService, registration *app.RegistrationService,
	leaderboard *app.LeaderboardService, admin *app.QuestAdmin, logger *slog.Logger, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "sidequest_session"
	}
	return &Server{
		quests:       quests,
		auth:         auth,
		registration: registration,
		leaderboard:  leaderboard,
		admin:        admin,
		logger:       logger,
		opts:         opts,
		ws:           NewLeaderboardWS(leaderboard, logger),
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(s.cors())

	mux.Get("/healthz", s.handleHealth)
	mux.Get("/ws/leaderboard", s.ws.ServeWS)

	mux.Route("/game", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(s.requireGameUser)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Get("/quests", s.handleBoard)
			r.Get("/quests/{questID}", s.handleQuest)
			r.Post("/quests/validate", s.handleValidate)
		})
	})

	mux.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Get("/check-email", s.handleCheckEmail)
		r.Get("/registrations/count", s.handleCount)
		r.Get("/registrations/uid/{uid}", s.handleByUID)
		r.With(s.requireAdmin).Get("/registrations", s.handleRegistrations)
		r.With(s.requireAdmin).Post("/registrations/generate-uids", s.handleGenerateUIDs)
	})

	mux.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/quests", s.handleAdminList)
		r.Post("/quests", s.handleAdminCreate)
		r.Get("/quests/{questID}", s.handleAdminGet)
		r.Put("/quests/{questID}", s.handleAdminUpdate)
		r.Delete("/quests/{questID}", s.handleAdminDelete)
	})

	return mux
}

func (s *Server) cors() func(http.Handler) http.Handler {
	if len(s.opts.CORSOrigins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
			return
		}
	}
	w.Write([]byte("ok"))
}
