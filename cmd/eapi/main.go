package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/achocks0/payment-gateway/audit"
	"github.com/achocks0/payment-gateway/auth"
	"github.com/achocks0/payment-gateway/core/config"
	"github.com/achocks0/payment-gateway/core/health"
	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/server"
	"github.com/achocks0/payment-gateway/eapi"
	"github.com/achocks0/payment-gateway/forward"
	"github.com/achocks0/payment-gateway/integration/database/pg"
	redisconn "github.com/achocks0/payment-gateway/integration/database/redis"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/notify"
	"github.com/achocks0/payment-gateway/pkg/jwt"
	"github.com/achocks0/payment-gateway/pkg/ratelimiter"
	"github.com/achocks0/payment-gateway/rotation"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/vault"
)

type appConfig struct {
	SigningKey string `env:"TOKEN_SIGNING_KEY,required"`

	// TokenStore selects where minted tokens live: "memory" for a single
	// node, "redis" for a shared cache across gateway replicas.
	TokenStore string `env:"TOKEN_STORE" envDefault:"memory"`

	// DatabaseURL enables the PostgreSQL audit trail when set.
	DatabaseURL string `env:"DATABASE_URL"`

	WebhookURL    string `env:"ROTATION_WEBHOOK_URL"`
	WebhookSecret string `env:"ROTATION_WEBHOOK_SECRET"`

	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"100"`
	RateLimitRefill   int           `env:"RATE_LIMIT_REFILL" envDefault:"100"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1m"`
}

func main() {
	log := logger.New(logger.WithProduction("payment-eapi"))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("gateway exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		appCfg     appConfig
		serverCfg  server.Config
		vaultCfg   vault.Config
		authCfg    auth.Config
		forwardCfg forward.Config
		rotCfg     rotation.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&serverCfg)
	config.MustLoad(&vaultCfg)
	config.MustLoad(&authCfg)
	config.MustLoad(&forwardCfg)
	config.MustLoad(&rotCfg)

	m := metrics.New()

	creds, err := vault.NewHashicorpClient(vaultCfg)
	if err != nil {
		return err
	}
	fallback := vault.NewFallbackCache(vaultCfg.FallbackCapacity, vaultCfg.FallbackTTL)

	store, storeCheck, err := newTokenStore(ctx, appCfg, log)
	if err != nil {
		return err
	}

	codec, err := jwt.NewFromString(appCfg.SigningKey)
	if err != nil {
		return err
	}

	var authOpts []auth.ServiceOption
	var notifier notify.Notifier = notify.Nop{}
	var dispatcher *notify.Dispatcher
	if appCfg.WebhookURL != "" {
		dispatcher = notify.NewDispatcher(
			notify.NewWebhookTransport(appCfg.WebhookURL, appCfg.WebhookSecret), 256, log)
		notifier = dispatcher
	}

	checks := []health.NamedCheck{
		health.Named("vault", func(ctx context.Context) error {
			up := creds.Available(ctx)
			m.VaultAvailable(up)
			if !up {
				return vault.ErrUnavailable
			}
			return nil
		}),
	}
	if storeCheck != nil {
		checks = append(checks, health.Named("token-store", storeCheck))
	}

	if appCfg.DatabaseURL != "" {
		var pgCfg pg.Config
		config.MustLoad(&pgCfg)
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, pgCfg, audit.Migrations); err != nil {
			return err
		}

		recorder := audit.NewPostgresRecorder(pool)
		notifier = audit.NewRotationNotifier(recorder, notifier, log)
		authOpts = append(authOpts, auth.WithIssuedHook(func(ctx context.Context, t *token.Token) {
			if err := recorder.RecordTokenIssued(ctx, audit.TokenIssued{
				ClientID:  t.ClientID,
				JTI:       t.JTI,
				IssuedAt:  t.IssuedAt,
				ExpiresAt: t.ExpiresAt,
			}); err != nil {
				log.ErrorContext(ctx, "token audit record failed", logger.Error(err))
			}
		}))
		checks = append(checks, health.Named("audit-db", recorder.Healthcheck))
	}

	validator := auth.NewValidator(creds, fallback, log)
	authSvc := auth.NewService(authCfg, validator, codec, store, m, log, authOpts...)
	forwarder := forward.New(forwardCfg, authSvc, m, log)
	checks = append(checks, health.Named("downstream", forwarder.Healthcheck))

	manager := rotation.NewManager(creds, store, rotCfg,
		rotation.WithNotifier(notifier),
		rotation.WithMetrics(m),
		rotation.WithFallbackCache(fallback),
		rotation.WithLogger(log),
	)
	scheduler := rotation.NewScheduler(manager, rotation.WithSchedulerLogger(log))
	checks = append(checks, health.Named("rotation-scheduler", scheduler.Healthcheck))

	limiterStore := ratelimiter.NewMemoryStore()
	limiter, err := ratelimiter.NewBucket(limiterStore, ratelimiter.Config{
		Capacity:       appCfg.RateLimitCapacity,
		RefillRate:     appCfg.RateLimitRefill,
		RefillInterval: appCfg.RateLimitInterval,
	})
	if err != nil {
		return err
	}

	router := eapi.NewRouter(eapi.RouterDeps{
		Payments:  eapi.NewPaymentsHandler(authSvc, forwarder, log),
		Rotations: eapi.NewRotationsHandler(manager, log),
		Limiter:   limiter,
		Metrics:   m,
		Checks:    checks,
		Log:       log,
	})

	srv, err := server.NewFromConfig(serverCfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	if dispatcher != nil {
		dispatcher.Start(ctx)
		defer dispatcher.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(ctx, router))
	g.Go(scheduler.Run(ctx))
	g.Go(func() error {
		if err := limiterStore.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	log.InfoContext(ctx, "payment gateway started", slog.String("addr", serverCfg.Addr))
	return g.Wait()
}

// newTokenStore picks the token cache backend. The second return value is
// a health probe for backends that have one.
func newTokenStore(ctx context.Context, cfg appConfig, log *slog.Logger) (token.Store, health.Check, error) {
	if cfg.TokenStore != "redis" {
		return token.NewMemoryStore(), nil, nil
	}

	var redisCfg redisconn.Config
	config.MustLoad(&redisCfg)
	client, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, err
	}
	log.InfoContext(ctx, "using redis token store")
	return token.NewRedisStore(client), redisconn.Healthcheck(client), nil
}
