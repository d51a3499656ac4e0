package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/middleware"
	"github.com/platinummonkey/plank/pkg/observability"
	"github.com/platinummonkey/plank/pkg/service"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// Options configures the HTTP surface. Nil fields disable the matching feature.
type Options struct {
	Logger        *logrus.Logger
	Authenticator auth.Authenticator
	Health        *observability.HealthChecker
	Metrics       *observability.Metrics
	Registry      *prometheus.Registry
	MaxBodyBytes  int64

	// RateLimit runs after authentication so it can key on the caller
	RateLimit func(http.Handler) http.Handler

	// DefaultTokenTTL applies to created tokens without an explicit expiry; zero means no expiry
	DefaultTokenTTL time.Duration
}

// Server represents our API server
type Server struct {
	svc      *service.Service
	resolver *auth.Resolver
	logger   *logrus.Logger
	router   *mux.Router
	tokenTTL time.Duration
}

// NewServer creates a new API server
func NewServer(svc *service.Service, resolver *auth.Resolver, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		svc:      svc,
		resolver: resolver,
		logger:   opts.Logger,
		router:   mux.NewRouter(),
		tokenTTL: opts.DefaultTokenTTL,
	}

	s.router.Use(httputil.RequestIDMiddleware, httputil.LoggingMiddleware(opts.Logger), httputil.RecoveryMiddleware(opts.Logger))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	if opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, opts.Health)
	}
	if opts.Registry != nil {
		observability.RegisterMetricsEndpoint(s.router, opts.Registry)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(httputil.ContentTypeMiddleware, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	if opts.Authenticator != nil {
		api.Use(middleware.NewAuthMiddleware(opts.Authenticator, opts.Logger).Handler)
	}
	if opts.RateLimit != nil {
		api.Use(mux.MiddlewareFunc(opts.RateLimit))
	}
	s.setupRoutes(api)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(r *mux.Router) {
	// Users
	r.HandleFunc("/users", s.registerUser).Methods(http.MethodPost)
	r.HandleFunc("/users/me", s.getCurrentUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.updateUser).Methods(http.MethodPatch)
	r.HandleFunc("/users/{id}/teams", s.listTeamsForUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/projects", s.listProjectsForUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/tokens", s.issueToken).Methods(http.MethodPost)

	// Tokens
	r.HandleFunc("/tokens", s.createToken).Methods(http.MethodPost)
	r.HandleFunc("/tokens", s.listTokens).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}", s.revokeToken).Methods(http.MethodDelete)

	// Teams
	r.HandleFunc("/teams", s.createTeam).Methods(http.MethodPost)
	r.HandleFunc("/teams", s.listTeams).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}", s.getTeam).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}", s.updateTeam).Methods(http.MethodPatch)
	r.HandleFunc("/teams/{id}", s.deleteTeam).Methods(http.MethodDelete)
	r.HandleFunc("/teams/{id}/members", s.addMember).Methods(http.MethodPost)
	r.HandleFunc("/teams/{id}/members/{email}", s.removeMember).Methods(http.MethodDelete)

	// Projects
	r.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	r.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.updateProject).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}/users", s.listProjectUsers).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/sponsors/{team_id}", s.sponsorProject).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/sponsors/{team_id}", s.unsponsorProject).Methods(http.MethodDelete)

	// Boards
	r.HandleFunc("/projects/{id}/boards", s.createBoard).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/boards", s.listBoards).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", s.getBoard).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", s.updateBoard).Methods(http.MethodPatch)
	r.HandleFunc("/boards/{id}", s.deleteBoard).Methods(http.MethodDelete)

	// Work items
	r.HandleFunc("/boards/{id}/work-items", s.createWorkItem).Methods(http.MethodPost)
	r.HandleFunc("/boards/{id}/work-items", s.listWorkItems).Methods(http.MethodGet)
	r.HandleFunc("/work-items/{id}", s.getWorkItem).Methods(http.MethodGet)
	r.HandleFunc("/work-items/{id}", s.updateWorkItem).Methods(http.MethodPatch)
	r.HandleFunc("/work-items/{id}", s.deleteWorkItem).Methods(http.MethodDelete)
	r.HandleFunc("/work-items/{id}/children", s.listChildren).Methods(http.MethodGet)
	r.HandleFunc("/work-items/{id}/comments", s.createComment(tracker.ParentWorkItem)).Methods(http.MethodPost)
	r.HandleFunc("/work-items/{id}/comments", s.listComments(tracker.ParentWorkItem)).Methods(http.MethodGet)

	// Bug items
	r.HandleFunc("/projects/{id}/bug-items", s.createBugItem).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/bug-items", s.listBugItems).Methods(http.MethodGet)
	r.HandleFunc("/bug-items/{id}", s.getBugItem).Methods(http.MethodGet)
	r.HandleFunc("/bug-items/{id}", s.updateBugItem).Methods(http.MethodPatch)
	r.HandleFunc("/bug-items/{id}", s.deleteBugItem).Methods(http.MethodDelete)
	r.HandleFunc("/bug-items/{id}/comments", s.createComment(tracker.ParentBugItem)).Methods(http.MethodPost)
	r.HandleFunc("/bug-items/{id}/comments", s.listComments(tracker.ParentBugItem)).Methods(http.MethodGet)

	// Comments
	r.HandleFunc("/comments/{id}", s.updateComment).Methods(http.MethodPatch)
	r.HandleFunc("/comments/{id}", s.deleteComment).Methods(http.MethodDelete)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}
