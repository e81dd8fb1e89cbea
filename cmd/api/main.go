package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"merosamaj.org/internal/blob"
	"merosamaj.org/internal/cache"
	"merosamaj.org/internal/config"
	"merosamaj.org/internal/donation"
	"merosamaj.org/internal/httpapi"
	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/registration"
	"merosamaj.org/internal/session"
	"merosamaj.org/internal/store/memory"
	"merosamaj.org/internal/store/pg"
	"merosamaj.org/internal/stream"
	"merosamaj.org/internal/verification"
)

var (
	version = "0.1.0"
	commit  = ""
)

// backend is every store the service writes to.
type backend interface {
	identity.AccountStore
	profile.Store
	verification.Store
	donation.Store
}

func main() {
	obs.Init()
	build := obs.ReadBuild(version, commit)
	build.Publish()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		db *sql.DB
		st backend
	)
	if cfg.PGDSN != "" {
		pgs, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgs.DB()
		st = pgs
	} else {
		obs.Warn("SAMAJ_PG_DSN not set, using the in-memory store", nil)
		st = memory.New()
	}

	var (
		roles     *cache.Roles
		roleCache session.Cache
	)
	if cfg.RedisAddr != "" {
		roles = cache.NewRoles(cache.NewClient(cfg.RedisAddr, cfg.RedisPassword), cfg.RoleCacheTTL)
		roleCache = roles
	}

	hub := stream.New()
	idp, err := identity.NewProvider(st,
		identity.WithSecret(cfg.AuthSecret),
		identity.WithTokenTTL(cfg.TokenTTL),
		identity.WithMinPasswordLength(cfg.MinPasswordLen),
		identity.WithPublisher(hub),
	)
	if err != nil {
		log.Fatalf("identity provider: %v", err)
	}
	if !idp.SupportsTokens() {
		obs.Warn("SAMAJ_AUTH_SECRET not set, sign-in is disabled", nil)
	}

	resolver := session.NewResolver(st, roleCache)
	verifier := verification.NewService(st, st,
		verification.WithInvalidator(resolver),
		verification.WithPublisher(hub),
	)
	blobs, err := blob.NewFS(cfg.UploadDir, cfg.UploadBaseURL, blob.WithMaxSize(cfg.MaxUploadBytes))
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: db}
	if roles != nil {
		probe.Cache = roles
	}

	uploadsPath := cfg.UploadBaseURL
	if u, err := url.Parse(cfg.UploadBaseURL); err == nil && u.Path != "" {
		uploadsPath = u.Path
	}

	api := httpapi.New(probe, version, httpapi.Services{
		Identity:     idp,
		Resolver:     resolver,
		Hub:          hub,
		Registration: registration.NewWorkflow(idp, st, st, registration.WithPublisher(hub)),
		Verification: verifier,
		Panel:        verification.NewPanel(verifier),
		Intake:       donation.NewIntake(st, blobs),
		Uploads:      blobs.Handler(),
	},
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins),
		httpapi.WithMaxUploadBytes(cfg.MaxUploadBytes),
		httpapi.WithUploadsPath(uploadsPath),
		httpapi.WithSecureCookies(cfg.SecureCookies),
		httpapi.WithBuild(build),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Session streams stay open, so no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		grpcServer *grpc.Server
		health     *httpapi.GRPCServer
	)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcServer = grpc.NewServer()
		health = httpapi.NewGRPCServer(probe, version)
		health.Register(grpcServer)
		go health.Watch(ctx, 15*time.Second)
		go func() {
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	obs.Info("starting samaj-api", map[string]any{
		"version":   build.Version,
		"commit":    build.Commit,
		"http_addr": srv.Addr,
		"grpc_addr": cfg.GRPCAddr,
		"postgres":  db != nil,
		"redis":     roles != nil,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	obs.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if health != nil {
		health.Shutdown()
	}
	_ = srv.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if db != nil {
		_ = db.Close()
	}
	if roles != nil {
		_ = roles.Close()
	}
	obs.Info("stopped", nil)
}
