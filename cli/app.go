package cli

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"vizinsight/ai"
	"vizinsight/cache"
	"vizinsight/config"
	"vizinsight/db"
	"vizinsight/mounter"
	"vizinsight/ratelimit"
	"vizinsight/retry"
	"vizinsight/service"
	"vizinsight/session"
	"vizinsight/validation"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg       config.Config
	db        *db.DB
	ai        *ai.AIService
	counter   *ratelimit.Counter
	warehouse *service.SQLServerService
	loader    mounter.ScriptLoader

	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	a.db = database
	a.closers = append(a.closers, database.Close)

	a.ai = ai.New(cfg.Inference, cfg.Retry, cache.New(cfg.CacheTTL))
	a.closers = append(a.closers, a.ai.Close)

	store, err := a.counterStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.counter = ratelimit.New(store, cfg.DailyLimit)

	if cfg.Charts.VerifyScripts {
		a.loader = mounter.NewHTTPLoader(5 * time.Second)
	}

	if cfg.SQLServer.Enabled() {
		warehouse, err := service.NewSQLServerService(cfg.SQLServer)
		if err != nil {
			log.Warn().Err(err).Msg("SQL Server features will be unavailable")
		} else {
			a.warehouse = warehouse
			a.closers = append(a.closers, warehouse.Close)
			log.Info().Str("server", cfg.SQLServer.Server).Msg("SQL Server service initialized")
		}
	}
	return a, nil
}

func (a *app) counterStore() (ratelimit.Store, error) {
	switch strings.ToLower(a.cfg.CounterStore) {
	case "", "badger":
		return a.db.CounterStore(), nil
	case "memory":
		return ratelimit.NewMemoryStore(), nil
	case "redis":
		if a.cfg.RedisAddr == "" {
			return nil, errors.New("counter store redis needs REDIS_ADDR")
		}
		store := ratelimit.NewRedisStore(a.cfg.RedisAddr)
		a.closers = append(a.closers, store.Close)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("redis not reachable yet")
		}
		return store, nil
	}
	return nil, errors.Errorf("unknown counter store %q", a.cfg.CounterStore)
}

// newMounter returns a mounter over a fresh page for one surface.
func (a *app) newMounter() *mounter.Mounter {
	charts := a.cfg.Charts
	opts := mounter.Options{
		ContainerID:   charts.ContainerID,
		CanvasID:      charts.CanvasID,
		Scripts:       charts.Scripts,
		Styles:        charts.Styles,
		HelperClasses: charts.HelperClasses,
		Loader:        a.loader,
	}
	return mounter.New(mounter.NewDocument(), opts)
}

func (a *app) orchestrator(sessions session.Provider, events service.Publisher) *service.Orchestrator {
	opts := service.Options{
		Validator: validation.Validator{
			MaxLength:       a.cfg.MaxPromptLength,
			RejectGibberish: a.cfg.RejectGibberish,
		},
		Retry: retry.Options{
			Retries:    a.cfg.Retry.Retries,
			Delay:      a.cfg.Retry.Delay,
			Multiplier: a.cfg.Retry.Multiplier,
			MaxDelay:   a.cfg.Retry.MaxDelay,
			Timeout:    a.cfg.Inference.Timeout,
		},
		Links:   a.cfg.Links,
		History: a.db,
		Events:  events,
	}
	if a.warehouse != nil {
		opts.Warehouse = a.warehouse
		opts.Fill = a.cfg.SQLServer.Fill
	}
	return service.NewOrchestrator(a.ai, a.counter, sessions, opts)
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
