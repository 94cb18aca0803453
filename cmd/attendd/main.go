package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lizzahq/attendd/internal/attendance"
	"github.com/lizzahq/attendd/internal/backend"
	"github.com/lizzahq/attendd/internal/config"
	"github.com/lizzahq/attendd/internal/database"
	"github.com/lizzahq/attendd/internal/journal"
	"github.com/lizzahq/attendd/internal/migrations"
	"github.com/lizzahq/attendd/internal/sampler"
	"github.com/lizzahq/attendd/internal/server"
	"github.com/lizzahq/attendd/internal/tracker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Identity ---
	session := journal.NewSessionStore(db)
	email, err := session.Get(ctx, journal.KeyEmail)
	if errors.Is(err, journal.ErrNotFound) {
		if cfg.Email == "" {
			return fmt.Errorf("no identity: set ATTENDD_EMAIL for the first run")
		}
		email = cfg.Email
		if err := session.Set(ctx, journal.KeyEmail, email); err != nil {
			return fmt.Errorf("seeding session store: %w", err)
		}
		logger.Info("seeded identity", "email", email)
	} else if err != nil {
		return fmt.Errorf("reading session store: %w", err)
	}

	// --- Shift profile ---
	api := backend.NewClient(cfg.BackendURL)
	profileCtx, cancelProfile := context.WithTimeout(ctx, 15*time.Second)
	profile, err := api.Profile(profileCtx, email)
	cancelProfile()
	if err != nil {
		return fmt.Errorf("loading shift profile: %w", err)
	}
	if _, _, err := attendance.ParseShiftTime(profile.ShiftStart); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if err := session.Set(ctx, journal.KeyFullName, profile.FullName); err != nil {
		return fmt.Errorf("storing profile name: %w", err)
	}
	if profile.ForcePasswordChange {
		if err := session.Set(ctx, journal.KeyForcePasswordChange, "true"); err != nil {
			return fmt.Errorf("storing forced password flag: %w", err)
		}
	}
	logger.Info("loaded shift profile",
		"email", profile.Email, "shift_start", profile.ShiftStart, "shift_end", profile.ShiftEnd)

	// --- Location source ---
	var src sampler.Sampler
	if cfg.MQTTBroker != "" {
		mqttSrc, err := sampler.NewMQTT(cfg.MQTTBroker, cfg.MQTTTopic, cfg.SampleMaxAge, logger)
		if err != nil {
			return fmt.Errorf("connecting to gps bridge: %w", err)
		}
		defer mqttSrc.Close()
		src = mqttSrc
	} else {
		src = sampler.NewFixed(cfg.FixedLat, cfg.FixedLon)
		logger.Info("using fixed coordinates", "lat", cfg.FixedLat, "lon", cfg.FixedLon)
	}

	// --- Redis (optional live-tracking mirror) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	// --- Tracker ---
	broker := server.NewBroker()
	events := journal.New(db)

	trk := tracker.New(tracker.Config{
		Logger:       logger,
		Sampler:      src,
		Evaluator:    api,
		Journal:      events,
		Publisher:    broker,
		Mirror:       rdb,
		Profile:      profile,
		Policy:       attendance.Policy(cfg.ViolationPolicy),
		PollInterval: cfg.PollInterval,
	})

	// --- HTTP server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:    logger,
		Tracker:   trk,
		Journal:   events,
		Session:   session,
		Passwords: api,
		Broker:    broker,
		DB:        db,
		Redis:     rdb,
		Email:     email,
		TokenHash: cfg.APITokenHash,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting tracker", "poll_interval", cfg.PollInterval.String(), "policy", cfg.ViolationPolicy)
		return trk.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
