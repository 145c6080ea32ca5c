package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/accounts"
	"github.com/telekom/account-notifier/pkg/api"
	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/events"
	"github.com/telekom/account-notifier/pkg/gateway"
	"github.com/telekom/account-notifier/pkg/mail"
	"github.com/telekom/account-notifier/pkg/notify"
	"github.com/telekom/account-notifier/pkg/ratelimit"
)

// runner is a started component; it blocks until ctx is done or it fails.
type runner func(ctx context.Context) error

// app wires components from configuration and releases what it opened in
// reverse order.
type app struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	debug    bool
	sender   mail.Sender
	notifier *notify.Notifier
	closers  []func()
}

func newApp(rt *runtimeState) *app {
	return &app{cfg: rt.cfg, log: rt.log, debug: rt.debug, sender: rt.sender}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) serverConfig(name, address string) api.ServerConfig {
	return api.ServerConfig{
		Name:            name,
		Address:         address,
		TLSCertFile:     a.cfg.Server.TLSCertFile,
		TLSKeyFile:      a.cfg.Server.TLSKeyFile,
		TrustedProxies:  a.cfg.Server.TrustedProxies,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Debug:           a.debug,
	}
}

// buildNotifier returns the shared notifier, creating the renderer and the
// mail transport on first use.
func (a *app) buildNotifier(ctx context.Context) (*notify.Notifier, error) {
	if a.notifier != nil {
		return a.notifier, nil
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, err
	}
	sender := a.sender
	if sender == nil {
		sender, err = mail.NewSender(ctx, a.cfg.Mail, a.log)
		if err != nil {
			return nil, err
		}
		if c, ok := sender.(io.Closer); ok {
			a.onClose(func() { _ = c.Close() })
		}
	}
	a.notifier = notify.NewNotifier(renderer, sender, a.log)
	return a.notifier, nil
}

func (a *app) accountRepository(ctx context.Context) (accounts.Repository, error) {
	var repo accounts.Repository
	if url := a.cfg.Accounts.DatabaseURL; url != "" {
		db, err := accounts.OpenPostgres(ctx, url)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = db.Close() })
		pg := accounts.NewPostgresRepository(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		repo = pg
	} else {
		a.log.Warnw("No database configured, accounts are kept in memory")
		repo = accounts.NewMemoryRepository()
	}

	if rc := a.cfg.Accounts.Redis; rc.Address != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Address, Password: rc.Password, DB: rc.DB})
		a.onClose(func() { _ = client.Close() })
		repo = accounts.NewCachedRepository(repo, client, rc.TTL, a.log)
		a.log.Infow("Account cache enabled", "address", rc.Address, "ttl", rc.TTL)
	}
	return repo, nil
}

func (a *app) buildAccounts(ctx context.Context) (runner, error) {
	repo, err := a.accountRepository(ctx)
	if err != nil {
		return nil, err
	}
	producer, err := events.NewProducer(a.cfg.Kafka, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = producer.Close() })

	svc := accounts.NewService(repo, producer, a.log)
	server, err := api.NewServer(a.log.Desugar(), a.serverConfig(componentAccounts, a.cfg.Server.AccountsAddress))
	if err != nil {
		return nil, err
	}
	a.onClose(server.Close)
	if err := server.RegisterAll([]api.APIController{accounts.NewController(svc, a.log)}); err != nil {
		return nil, err
	}
	return server.Run, nil
}

func (a *app) buildNotifications(ctx context.Context) (runner, error) {
	n, err := a.buildNotifier(ctx)
	if err != nil {
		return nil, err
	}

	var middleware []gin.HandlerFunc
	if rl, ok := ratelimit.FromConfig(a.cfg.RateLimit); ok {
		limiter := ratelimit.New(rl)
		a.onClose(limiter.Stop)
		middleware = append(middleware, limiter.Middleware())
	}
	ctrl := notify.NewController(n, a.log, middleware...)

	server, err := api.NewServer(a.log.Desugar(), a.serverConfig(componentNotifications, a.cfg.Server.NotificationsAddress))
	if err != nil {
		return nil, err
	}
	a.onClose(server.Close)
	if err := server.RegisterAll([]api.APIController{ctrl}); err != nil {
		return nil, err
	}
	return server.Run, nil
}

func (a *app) buildConsumer(ctx context.Context) (runner, error) {
	n, err := a.buildNotifier(ctx)
	if err != nil {
		return nil, err
	}
	consumer, err := events.NewConsumer(a.cfg.Kafka, a.cfg.Consumer, notify.NewEventHandler(n, a.log), a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = consumer.Close() })
	return consumer.Run, nil
}

func (a *app) buildGateway(_ context.Context) (runner, error) {
	routes, err := gateway.NewRoutes(a.cfg.Gateway, a.log)
	if err != nil {
		return nil, err
	}

	scfg := a.serverConfig(componentGateway, a.cfg.Gateway.ListenAddress)
	if rl, ok := ratelimit.FromConfig(a.cfg.RateLimit); ok {
		scfg.RateLimit = &rl
	}
	server, err := api.NewServer(a.log.Desugar(), scfg)
	if err != nil {
		return nil, err
	}
	a.onClose(server.Close)

	controllers := make([]api.APIController, 0, len(routes))
	for _, r := range routes {
		controllers = append(controllers, r)
	}
	if err := server.RegisterAll(controllers); err != nil {
		return nil, err
	}
	if err := server.RegisterRoot([]api.APIController{gateway.NewFallbackController()}); err != nil {
		return nil, err
	}
	return server.Run, nil
}

func (a *app) build(ctx context.Context, component string) (runner, error) {
	var (
		run runner
		err error
	)
	switch component {
	case componentAccounts:
		run, err = a.buildAccounts(ctx)
	case componentNotifications:
		run, err = a.buildNotifications(ctx)
	case componentConsumer:
		run, err = a.buildConsumer(ctx)
	case componentGateway:
		run, err = a.buildGateway(ctx)
	default:
		return nil, fmt.Errorf("unknown component %q", component)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s: %w", component, err)
	}
	return run, nil
}
