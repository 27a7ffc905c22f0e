package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"effectcraft/internal/apply"
	"effectcraft/internal/compendium"
	"effectcraft/internal/config"
	"effectcraft/internal/effect"
	"effectcraft/internal/reconcile"
	"effectcraft/internal/store"
	"effectcraft/internal/store/postgres"
	"effectcraft/internal/store/sqlite"
	"effectcraft/internal/world"
)

const (
	configFile = "effectcraft.yaml"
	rulesFile  = "rules.yaml"
)

// app wires the full engine against the configured backend. Every
// command goes through here so the hook service and decorator are
// installed the same way everywhere.
type app struct {
	cfg      *config.Config
	rules    *config.Rules
	log      *logrus.Logger
	backend  store.Store
	world    *store.World
	resolver *effect.Resolver
	applier  apply.Applier
	rec      *reconcile.Reconciler
	service  *reconcile.Service
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureSchema(ctx); err != nil {
		backend.Close(ctx)
		return nil, err
	}

	w, err := store.OpenWorld(ctx, backend)
	if err != nil {
		backend.Close(ctx)
		return nil, err
	}

	resolver := &effect.Resolver{
		World:      w,
		Namespace:  cfg.Namespace,
		GrantTypes: rules.GrantableTypes(),
	}

	packs, err := openPacks(cfg)
	if err != nil {
		backend.Close(ctx)
		return nil, err
	}

	rec := reconcile.New(w, resolver, packs, log)
	applier := apply.Decorate(world.ApplyActiveEffects, apply.Deps{
		Resolver:  resolver,
		Reconcile: rec.Reconcile,
		Log:       log,
	})

	service := reconcile.NewService(w.Hooks(), w, rec, resolver, reconcile.NewLogNotifier(log), log)
	if err := service.Register(ctx); err != nil {
		backend.Close(ctx)
		return nil, err
	}

	return &app{
		cfg:      cfg,
		rules:    rules,
		log:      log,
		backend:  backend,
		world:    w,
		resolver: resolver,
		applier:  applier,
		rec:      rec,
		service:  service,
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	if err := a.service.Unregister(); err != nil {
		return err
	}
	return a.backend.Close(ctx)
}

func loadRules() (*config.Rules, error) {
	rules, err := config.LoadRules(rulesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.DefaultRules(), nil
		}
		return nil, err
	}
	return rules, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("loading config: invalid log level %q", cfg.Logging.Level)
	}
	log.SetLevel(level)
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return sqlite.New(ctx, cfg.Storage.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

func openPacks(cfg *config.Config) (reconcile.ItemSource, error) {
	if cfg.Packs.Root == "" {
		return nil, nil
	}
	lib, err := compendium.Open(cfg.Packs.Root)
	if err != nil {
		return nil, err
	}
	return compendium.NewCache(lib, nil), nil
}
