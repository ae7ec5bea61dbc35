package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/primal-host/primal-bridge/internal/account"
	"github.com/primal-host/primal-bridge/internal/config"
	"github.com/primal-host/primal-bridge/internal/content"
	"github.com/primal-host/primal-bridge/internal/database"
	"github.com/primal-host/primal-bridge/internal/federation"
	"github.com/primal-host/primal-bridge/internal/follower"
	"github.com/primal-host/primal-bridge/internal/inbox"
	"github.com/primal-host/primal-bridge/internal/logging"
	"github.com/primal-host/primal-bridge/internal/metrics"
	"github.com/primal-host/primal-bridge/internal/outbox"
	"github.com/primal-host/primal-bridge/internal/platform"
	"github.com/primal-host/primal-bridge/internal/post"
	"github.com/primal-host/primal-bridge/internal/server"
	"github.com/primal-host/primal-bridge/internal/user"
)

// deliveryQueueSize bounds activities waiting for a delivery worker.
const deliveryQueueSize = 1024

// app holds the wired components shared by the subcommands.
type app struct {
	cfg  *config.Config
	log  *slog.Logger
	db   *database.DB
	urls *federation.URLs

	followers *follower.Registry
	accounts  *account.Provisioner
	delivery  *federation.Delivery
	server    *server.Server
}

// newApp loads configuration, opens the store and builds every component.
// Any error here is fatal to the process.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)
	slog.SetDefault(log)

	urls, err := federation.NewURLs(cfg.Origin)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	log.Info("store opened", "path", cfg.DBPath)

	m := metrics.New()
	users := user.NewStore(db)
	posts := post.NewStore(db)
	followers := follower.NewRegistry(db)
	platformClient := platform.NewClient(cfg.PlatformAPIURL, cfg.PlatformPageSize)

	accounts := account.NewProvisioner(users, platformClient, log, m)
	syncer := content.NewSynchronizer(accounts, users, posts, followers, platformClient, cfg.TTL(), log, m)
	materializer := outbox.NewMaterializer(followers, syncer, posts, urls, log)

	fedClient := federation.NewClient(urls, accounts, log.With("component", "federation"), federation.ClientOptions{})
	delivery := federation.NewDelivery(fedClient, cfg.DeliveryWorkers, deliveryQueueSize, log.With("component", "delivery"), m)
	handler := inbox.NewHandler(accounts, followers, delivery, fedClient, urls, log, m)

	srv := server.New(cfg.ListenAddr(), server.Deps{
		URLs:      urls,
		Accounts:  accounts,
		Outbox:    materializer,
		Inbox:     handler,
		Users:     users,
		Followers: followers,
		Metrics:   m,
		Log:       log,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		urls:      urls,
		followers: followers,
		accounts:  accounts,
		delivery:  delivery,
		server:    srv,
	}, nil
}

// Close releases the store.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("close store", "error", err)
	}
}
