package main

import (
	"context"
	"net"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/checkout"
	"github.com/PortNumber53/membership-checkout/backend/internal/config"
	"github.com/PortNumber53/membership-checkout/backend/internal/gateway"
	"github.com/PortNumber53/membership-checkout/backend/internal/httpserver"
	"github.com/PortNumber53/membership-checkout/backend/internal/logging"
	"github.com/PortNumber53/membership-checkout/backend/internal/store"
	"github.com/PortNumber53/membership-checkout/backend/internal/stripe"
)

func main() {
	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStorage,
			provideGateway,
			provideCheckout,
			provideServer,
		),
		fx.Invoke(startServer),
	).Run()
}

func provideConfig() (config.Config, error) {
	// Best-effort: load environment variables from .env-style files in local
	// development. Missing files are ignored.
	config.LoadDotEnv("../.env", ".env")
	return config.Load()
}

func provideLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() {
		_ = log.Sync()
	}))
	return log, nil
}

func provideStorage(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (store.Storage, error) {
	st, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(st.Close))
	return st, nil
}

func provideGateway(cfg config.Config, log *zap.Logger) (gateway.Gateway, error) {
	if !cfg.GatewayEnabled() {
		log.Warn("STRIPE_SECRET_KEY not set; charge token requests will be refused")
		return gateway.Disabled{}, nil
	}

	client, err := stripe.NewClient(stripe.Options{
		SecretKey:         cfg.StripeSecretKey,
		BaseURL:           cfg.StripeAPIURL,
		MaxNetworkRetries: 2,
	}, log)
	if err != nil {
		return nil, err
	}

	return gateway.NewCircuitBreaker(client, gateway.BreakerConfig{
		FailureThreshold: cfg.GatewayFailureThreshold,
		OpenTimeout:      cfg.GatewayOpenTimeout,
		IsFailure:        stripe.IsTransient,
	}), nil
}

func provideCheckout(cfg config.Config, st store.Storage, gw gateway.Gateway, log *zap.Logger) *checkout.Service {
	return checkout.NewService(st, st, log.Named("checkout"), checkout.WithGateway(gw, cfg.GatewayTimeout))
}

func provideServer(cfg config.Config, st store.Storage, svc *checkout.Service, log *zap.Logger) *httpserver.Server {
	return httpserver.New(cfg, st, svc, log)
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, srv *httpserver.Server, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil {
					log.Error("server exited with error", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("backend shutting down")
			return srv.Shutdown(ctx)
		},
	})
}
