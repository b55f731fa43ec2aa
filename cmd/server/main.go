package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	authservice "tokengate/internal/auth/service"
	"tokengate/internal/identity/keycache"
	"tokengate/internal/identity/verifier"
	"tokengate/internal/platform/config"
	"tokengate/internal/platform/httpserver"
	"tokengate/internal/platform/logger"
	"tokengate/internal/platform/metrics"
	redisclient "tokengate/internal/platform/redis"
	"tokengate/internal/resilience"
	sessionservice "tokengate/internal/session/service"
	"tokengate/internal/session/store"
	"tokengate/internal/session/token"
	"tokengate/internal/session/tokenhash"
	httptransport "tokengate/internal/transport/http"
	"tokengate/internal/user"
	"tokengate/pkg/audit"
	"tokengate/pkg/platform/circuit"
)

const auditBuffer = 256

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	log := logger.New(slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()
	sim := cfg.SimulationSettings()
	if sim != nil {
		log.Warn("fault simulation enabled; do not run this configuration in production")
	}

	// Session storage: Redis when configured, in-memory otherwise.
	var sessionStore store.Store = store.NewMemoryStore()
	redisClient, err := redisclient.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = store.NewRedisStore(redisClient.Client)
		log.Info("session store: redis")
	} else {
		log.Info("session store: memory")
	}

	// User directory: Postgres when configured, in-memory otherwise.
	var directory user.Directory = user.NewMemoryDirectory()
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		directory = user.NewPostgresDirectory(db)
		log.Info("user directory: postgres")
	} else {
		log.Info("user directory: memory")
	}

	// Audit trail: Kafka when configured, dropped otherwise.
	publisher := audit.Discard
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("audit publisher: kafka", "topic", cfg.AuditTopic)
	}
	emitter := audit.NewEmitter(publisher, log, auditBuffer)
	emitterCtx, stopEmitter := context.WithCancel(context.Background())
	defer stopEmitter()
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		_ = emitter.Run(emitterCtx)
	}()

	registry := circuit.NewRegistry(m.CircuitListener(),
		circuit.WithFailureThreshold(cfg.Circuit.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.Circuit.SuccessThreshold),
		circuit.WithCooldown(cfg.Circuit.Cooldown),
	)
	guards := resilience.NewGuards(registry, sim, resilience.WithRejectionCounter(m.RejectionListener()))

	keys := resilience.NewGuardedKeySource(keycache.New(
		keycache.WithTTL(cfg.KeyCacheTTL),
		keycache.WithHTTPClient(&http.Client{Timeout: cfg.JWKSTimeout}),
	), guards)
	issuer := token.NewIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	sessions := sessionservice.New(
		resilience.NewGuardedSessionStore(sessionStore, guards),
		tokenhash.NewHasher(cfg.BcryptCost),
		issuer,
	)

	authSvc := authservice.New(
		verifier.New(keys, cfg.Audiences()),
		resilience.NewGuardedDirectory(directory, guards),
		sessions,
		sim,
		m,
		emitter,
		log,
	)

	router := httptransport.NewRouter(httptransport.NewAuthHandler(authSvc), m, log)
	srv := httpserver.New(cfg.Addr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", cfg.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stopEmitter()
		<-emitterDone
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let the audit emitter drain after the last request has finished.
	stopEmitter()
	<-emitterDone

	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
