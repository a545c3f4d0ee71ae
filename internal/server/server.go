package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/talenthub/apiserver/config"
	"github.com/talenthub/apiserver/internal/auth"
	"github.com/talenthub/apiserver/internal/cache"
	"github.com/talenthub/apiserver/internal/db"
	"github.com/talenthub/apiserver/internal/handlers"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/services"
	"github.com/talenthub/apiserver/internal/storage"
	"github.com/talenthub/apiserver/internal/store"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	mq         *mq.MQ
	objects    *storage.Storage
	redis      *redis.Client
	notifier   *services.Notifier
}

// New connects every dependency named in cfg and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = objects.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	rdb := cache.NewClient(cfg.Redis)
	searchCache := cache.New(rdb, logger)
	if rdb != nil {
		if err := searchCache.Ping(ctx); err != nil {
			logger.Printf("[Server] Redis not reachable at startup: %v", err)
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)
	searchRepo := store.NewSearchRepository(dbConn)

	indexer := services.NewIndexer(profileRepo, searchRepo, searchCache, logger)
	var publisher services.Publisher = inlineIndexing{indexer: indexer}
	if broker != nil {
		publisher = broker
	}
	notifier := services.NewNotifier(publisher, logger)

	var messaging redis.Cmdable
	if rdb != nil {
		messaging = rdb
	}

	audit := services.NewAuditLogger(auditRepo, logger)
	authService := services.NewAuthService(userRepo, hasher, tokens)
	profileService := services.NewProfileService(profileRepo, objects, notifier, logger)
	searchService := services.NewSearchService(searchRepo, searchCache, cfg.Redis.SearchCacheTTL, logger)
	communicationService := services.NewCommunicationService(messaging, userRepo, notifier, logger)
	complianceService := services.NewComplianceService(auditRepo, cfg.AuditRetentionDays, logger)

	authMiddleware := handlers.RequireAuth(auth.NewGate(tokens, userRepo))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/health", handlers.Health)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService, audit, authMiddleware)
		})
		r.Route("/talent/profiles", func(r chi.Router) {
			handlers.ProfileRouter(r, profileService, audit, cfg.MaxResumeBytes, authMiddleware)
		})
		r.Route("/search", func(r chi.Router) {
			handlers.SearchRouter(r, searchService, audit, authMiddleware)
		})
		r.Route("/communication", func(r chi.Router) {
			handlers.CommunicationRouter(r, communicationService, authMiddleware)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, complianceService, audit, authMiddleware)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		mq:         broker,
		objects:    objects,
		redis:      rdb,
		notifier:   notifier,
	}, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight notifications and
// closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.notifier.Wait()
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.objects != nil {
		_ = s.objects.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

// inlineIndexing applies reindex events in-process when no broker is
// configured. Other events are dropped.
type inlineIndexing struct {
	indexer *services.Indexer
}

func (p inlineIndexing) PublishJSON(ctx context.Context, channel string, event any) (string, error) {
	ev, ok := event.(mq.ProfileReindexEvent)
	if !ok || channel != mq.ChannelProfileReindex {
		return "", nil
	}
	return "", p.indexer.HandleReindex(ctx, ev)
}
