package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/achocks0/payment-gateway/core/config"
	"github.com/achocks0/payment-gateway/core/health"
	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/core/server"
	redisconn "github.com/achocks0/payment-gateway/integration/database/redis"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/pkg/jwt"
	"github.com/achocks0/payment-gateway/sapi"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/verifier"
)

type appConfig struct {
	SigningKey string `env:"TOKEN_SIGNING_KEY,required"`

	// TokenStore selects the revocation backend: "memory" disables shared
	// revocation checks, "redis" reads the cache the gateway writes to so
	// rotation-purged tokens are rejected here too.
	TokenStore string `env:"TOKEN_STORE" envDefault:"memory"`
}

func main() {
	log := logger.New(logger.WithProduction("payment-sapi"))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("downstream service exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		appCfg      appConfig
		serverCfg   server.Config
		verifierCfg verifier.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&serverCfg)
	config.MustLoad(&verifierCfg)

	m := metrics.New()

	codec, err := jwt.NewFromString(appCfg.SigningKey)
	if err != nil {
		return err
	}

	var verifierOpts []verifier.Option
	checks := []health.NamedCheck{}
	if appCfg.TokenStore == "redis" {
		var redisCfg redisconn.Config
		config.MustLoad(&redisCfg)
		client, err := redisconn.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		verifierOpts = append(verifierOpts, verifier.WithRevocationStore(token.NewRedisStore(client)))
		checks = append(checks, health.Named("revocation-store", redisconn.Healthcheck(client)))
		log.InfoContext(ctx, "revocation checks enabled against shared token store")
	}

	v := verifier.New(verifierCfg, codec, m, log, verifierOpts...)

	router := sapi.NewRouter(sapi.RouterDeps{
		Payments: sapi.NewPaymentsHandler(log),
		Verifier: v,
		Metrics:  m,
		Checks:   checks,
		Log:      log,
	})

	srv, err := server.NewFromConfig(serverCfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(ctx, router))

	log.InfoContext(ctx, "payment processing service started", slog.String("addr", serverCfg.Addr))
	return g.Wait()
}
