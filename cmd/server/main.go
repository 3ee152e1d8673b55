package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"keyhaven/internal/document"
	documentmetrics "keyhaven/internal/document/metrics"
	"keyhaven/internal/escrow/seal"
	"keyhaven/internal/jwttoken"
	"keyhaven/internal/mailer"
	"keyhaven/internal/platform/config"
	"keyhaven/internal/platform/httpserver"
	"keyhaven/internal/platform/logger"
	"keyhaven/internal/platform/middleware/throttle"
	platformredis "keyhaven/internal/platform/redis"
	"keyhaven/internal/recovery/handler"
	recoverymetrics "keyhaven/internal/recovery/metrics"
	"keyhaven/internal/recovery/service"
	"keyhaven/internal/recovery/store"
	audit "keyhaven/pkg/platform/audit"
	auditpublisher "keyhaven/pkg/platform/audit/publisher"
	auditkafka "keyhaven/pkg/platform/audit/publishers/kafka"
	auditmemory "keyhaven/pkg/platform/audit/store/memory"
	auditpostgres "keyhaven/pkg/platform/audit/store/postgres"
	"keyhaven/pkg/platform/middleware/auth"
	"keyhaven/pkg/platform/middleware/device"
	"keyhaven/pkg/platform/middleware/requestid"
	"keyhaven/pkg/platform/middleware/requesttime"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sealer, err := seal.New(cfg.SealMasterKey)
	if err != nil {
		return err
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		escrowStore service.Store
		auditStore  audit.Store
		pool        *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		escrowStore = store.NewPostgres(pool)
		auditStore = auditpostgres.New(pool)
		log.Info("using postgres stores")
	} else {
		escrowStore = store.NewMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisherOpts := []auditpublisher.Option{
		auditpublisher.WithLogger(log),
		auditpublisher.WithAsyncBuffer(256),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		publisherOpts = append(publisherOpts, auditpublisher.WithSink(sink))
		log.Info("audit kafka sink enabled", "topic", cfg.Kafka.Topic)
	}
	auditPub := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer auditPub.Close()

	var deliverer mailer.Deliverer
	if cfg.SMTP.Addr != "" {
		deliverer = mailer.NewSMTP(cfg.SMTP.Addr, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	} else {
		deliverer = mailer.NewLog(log)
		log.Warn("SMTP_ADDR not set, vault keys will be logged instead of mailed")
	}

	extractor := document.New(document.DefaultPolicy(),
		document.WithLogger(log),
		document.WithMetrics(documentmetrics.New()),
	)

	recoverySvc, err := service.New(escrowStore, sealer, deliverer,
		service.WithLogger(log),
		service.WithMetrics(recoverymetrics.New()),
		service.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	h := handler.New(recoverySvc, extractor, log)

	router := newRouter(cfg, log, h, tokens, redisClient, pool)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting keyhaven", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(
	cfg config.Server,
	log *slog.Logger,
	h *handler.Handler,
	tokens *jwttoken.Service,
	redisClient *platformredis.Client,
	pool *pgxpool.Pool,
) http.Handler {
	var primary throttle.Limiter
	if redisClient != nil {
		primary = throttle.NewRedis(redisClient.Client, cfg.Throttle.RequestsPerWindow, cfg.Throttle.Window)
	}
	fallback := throttle.NewLocal(cfg.Throttle.RequestsPerWindow, cfg.Throttle.Window)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)

	r.Get("/healthz", healthHandler(redisClient, pool))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(throttle.Middleware(primary, fallback, log))
		h.Register(v1)
		v1.Group(func(pr chi.Router) {
			pr.Use(auth.RequireAuth(tokens, log))
			h.RegisterProtected(pr)
		})
	})
	return r
}

func healthHandler(redisClient *platformredis.Client, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
