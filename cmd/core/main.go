// Package main runs the trip core as a standalone process: durable
// store, connectivity watcher, write queue and read-through cache wired
// against a Firestore project. Mobile builds embed the same packages
// through cmd/mobile instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sgtlogistica/tripcore/internal/cache"
	"github.com/sgtlogistica/tripcore/internal/config"
	"github.com/sgtlogistica/tripcore/internal/connectivity"
	"github.com/sgtlogistica/tripcore/internal/kv"
	"github.com/sgtlogistica/tripcore/internal/logging"
	"github.com/sgtlogistica/tripcore/internal/models"
	"github.com/sgtlogistica/tripcore/internal/queue"
	"github.com/sgtlogistica/tripcore/internal/remote"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "tripcore.toml", "path to the config file")
	userID := flag.String("user", "", "signed-in user id")
	flag.Parse()

	logging.Init(os.Stdout, logging.LevelInfo)
	log := logging.Get().WithComponent("core")

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: core -user <user-id> [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", err)
		os.Exit(1)
	}

	log.Info("trip core starting", map[string]any{
		"version": Version, "user": *userID, "data_dir": cfg.DataDir,
	})

	if err := run(cfg, *userID, log); err != nil {
		log.Error("trip core exited", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, userID string, log *logging.Logger) error {
	store, err := kv.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	client := remote.NewFirestoreClient(remote.FirestoreConfig{
		ProjectID:    cfg.ProjectID,
		APIKey:       cfg.APIKey,
		Endpoint:     cfg.Endpoint,
		PollInterval: cfg.PollInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Assume online at startup; the probe corrects this within one
	// interval when the network is down.
	watcher := connectivity.NewWatcher(true)
	if cfg.ProbeURL != "" {
		watcher.StartProbe(ctx, cfg.ProbeURL, cfg.ProbeInterval)
	}

	mgr := queue.NewManager(store, client, watcher, queue.Config{
		UserID:      userID,
		MaxAttempts: cfg.MaxAttempts,
	})
	defer mgr.Close()

	pending, err := mgr.Pending()
	if err != nil {
		return err
	}
	log.Info("write queue ready", map[string]any{"pending": len(pending)})

	if len(pending) > 0 && watcher.Reachable() {
		report, err := mgr.Drain(ctx)
		if err != nil {
			log.Error("startup drain failed", err)
		} else {
			log.Info("startup drain finished", map[string]any{
				"committed": report.Committed, "remaining": report.Remaining,
			})
			if notice := report.PartialFailure(); notice != nil {
				log.Warn("some queued writes were rejected", map[string]any{
					"detail": notice.Error(),
				})
			}
		}
	}

	cch := cache.New(store, client)
	cancel := cch.Watch(ctx, userID, func(trips []*models.Trip) {
		log.Info("trip snapshot refreshed", map[string]any{"trips": len(trips)})
	})
	defer cancel()

	<-ctx.Done()
	log.Info("trip core stopping")
	return nil
}
