package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"socialnet/crud"
	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

// sessionCookie is the name of the cookie carrying the session token.
const sessionCookie = "session_token"

// Config holds the transport settings of the Server.
type Config struct {
	// SessionTTL is the lifetime of the session cookie. It should match the session store.
	SessionTTL time.Duration
	// SecureCookie marks the session cookie as https only.
	SecureCookie bool
	// AuthRate and AuthBurst limit login and register attempts per client IP.
	AuthRate  rate.Limit
	AuthBurst int
}

// Server provides the http functionality of this app, namely routing,
// request handling, and middleware. It also performs authentication
// before handing things over to one of the crud services.
type Server struct {
	router *mux.Router
	log    *zap.Logger
	cfg    Config

	us     domain.UserService
	ss     domain.SessionService
	ps     domain.PostService
	ls     domain.LikeService
	shs    domain.ShareService
	fs     domain.FollowService
	cs     domain.CommentService
	feed   domain.FeedService
	search domain.SearchService
	is     domain.ImageService

	postBounds   domain.Bounds
	avatarBounds domain.Bounds
	limiter      *ipLimiter
	ping         func(ctx context.Context) error
	now          func() time.Time
}

// NewServer returns a new instance of the server, registers all necessary
// routes and gives their handlers access to the crud services passed in.
func NewServer(svcs *crud.Services, cfg Config) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = crud.DefaultSessionTTL
	}
	if cfg.AuthRate <= 0 {
		cfg.AuthRate = rate.Every(time.Second)
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 5
	}

	// Construct a new Server with a gorilla router and the services passed in.
	s := &Server{
		router:       mux.NewRouter(),
		log:          logger.Named("http"),
		cfg:          cfg,
		us:           svcs.User,
		ss:           svcs.Session,
		ps:           svcs.Post,
		ls:           svcs.Like,
		shs:          svcs.Share,
		fs:           svcs.Follow,
		cs:           svcs.Comment,
		feed:         svcs.Feed,
		search:       svcs.Search,
		is:           svcs.Image,
		postBounds:   svcs.Image.PostBounds(),
		avatarBounds: svcs.Image.AvatarBounds(),
		limiter:      newIPLimiter(cfg.AuthRate, cfg.AuthBurst),
		now:          time.Now,
	}
	s.ping = func(ctx context.Context) error {
		sqlDB, err := svcs.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	// Every API route lives under /api.
	api := s.router.PathPrefix("/api").Subrouter()

	// Register routes of the auth system.
	s.registerAuthRoutes(api)

	// Register routes of the crud system.
	s.registerUserRoutes(api)
	s.registerFollowRoutes(api)
	s.registerPostRoutes(api)
	s.registerLikeRoutes(api)
	s.registerShareRoutes(api)
	s.registerCommentRoutes(api)
	s.registerSearchRoutes(api)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Route not found."))
	})

	// Set up middleware that needs to run on every request.
	s.router.Use(s.recoverPanic, s.logRequest, setContentTypeJSON, s.checkUser)
	return s
}

// ServeHTTP lets the Server act as the root handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.log.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// handleHealth handles the route "GET /healthz".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ping(r.Context()); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
