package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/challenge-engine/internal/auth"
	"github.com/terra-clan/challenge-engine/internal/config"
	"github.com/terra-clan/challenge-engine/internal/counter"
	"github.com/terra-clan/challenge-engine/internal/entry"
	"github.com/terra-clan/challenge-engine/internal/nav"
	"github.com/terra-clan/challenge-engine/internal/notify"
	"github.com/terra-clan/challenge-engine/internal/presets"
	"github.com/terra-clan/challenge-engine/internal/progress"
	"github.com/terra-clan/challenge-engine/internal/storage"
	"github.com/terra-clan/challenge-engine/internal/wizard"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	repo           storage.Repository
	entry          *entry.Service
	progress       *progress.Service
	presets        *presets.Loader
	counter        *counter.Cache
	notifier       *notify.Service
	authMiddleware *auth.Middleware
	requestsHub    *requestsHub

	// Per-user wizard and navigation state, keyed by internal user id
	mu         sync.Mutex
	wizards    map[int64]*wizard.Wizard
	navigators map[int64]*nav.Navigator
}

// NewServer creates a new API server. counter and notifier may be nil.
func NewServer(
	cfg config.ServerConfig,
	repo storage.Repository,
	entrySvc *entry.Service,
	progressSvc *progress.Service,
	presetLoader *presets.Loader,
	counterCache *counter.Cache,
	notifier *notify.Service,
	botToken string,
) *Server {
	s := &Server{
		config:         cfg,
		repo:           repo,
		entry:          entrySvc,
		progress:       progressSvc,
		presets:        presetLoader,
		counter:        counterCache,
		notifier:       notifier,
		authMiddleware: auth.NewMiddleware(repo, botToken),
		requestsHub:    newRequestsHub(),
		wizards:        make(map[int64]*wizard.Wizard),
		navigators:     make(map[int64]*nav.Navigator),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Telegram-Init-Data"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by Telegram initData authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Session and navigation
		r.Get("/session", s.handleGetSession)
		r.Post("/session/navigate", s.handleNavigate)

		// Challenges
		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", s.handleListChallenges)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetChallenge)
				r.Post("/join", s.handleJoin)
				r.Get("/rating", s.handleRating)

				r.Route("/requests", func(r chi.Router) {
					r.Post("/", s.handleRequestEntry)
					r.Get("/", s.handlePendingRequests)
					r.Get("/ws", s.handleRequestsWS)
				})

				r.Route("/invite", func(r chi.Router) {
					r.Get("/", s.handleGetInvite)
					r.Put("/", s.handleUpdateInvite)
				})
			})
		})

		// Entry requests (moderator decisions)
		r.Route("/requests/{id}", func(r chi.Router) {
			r.Post("/approve", s.handleApprove)
			r.Post("/reject", s.handleReject)
		})

		// Invites
		r.Post("/invites/{code}/redeem", s.handleRedeemInvite)

		// Participants
		r.Route("/participants/{id}", func(r chi.Router) {
			r.Get("/progress", s.handleGetProgress)
			r.Get("/reports", s.handleListReports)
			r.Post("/reports", s.handleSubmitReport)
		})

		// Creation wizard
		r.Route("/wizard", func(r chi.Router) {
			r.Get("/", s.handleWizardState)
			r.Post("/", s.handleWizardStart)
			r.Post("/confirm", s.handleWizardConfirm)
			r.Put("/draft", s.handleWizardDraft)
			r.Post("/advance", s.handleWizardAdvance)
			r.Post("/back", s.handleWizardBack)
			r.Post("/publish", s.handleWizardPublish)
		})

		// Presets
		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Get("/{id}", s.handleGetPreset)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// wizardFor returns the user's wizard session, creating one if absent
func (s *Server) wizardFor(userID int64) *wizard.Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wizards[userID]
	if !ok {
		w = wizard.New()
		s.wizards[userID] = w
	}
	return w
}

// resetWizard discards the user's wizard session
func (s *Server) resetWizard(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wizards, userID)
}

// navigatorFor returns the user's navigator, creating one on the home screen
func (s *Server) navigatorFor(userID int64) *nav.Navigator {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.navigators[userID]
	if !ok {
		n = nav.NewNavigator()
		s.navigators[userID] = n
	}
	return n
}
