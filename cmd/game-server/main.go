package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"galaxy-core/internal/command"
	"galaxy-core/internal/config"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/eventpush"
	"galaxy-core/internal/features/fleet"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/ledger"
	"galaxy-core/internal/logging"
	"galaxy-core/internal/store"
	"galaxy-core/internal/store/memory"
	"galaxy-core/internal/store/sqlite"
	httptransport "galaxy-core/internal/transport/http"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openBackend(cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	bus := eventbus.New(0)
	defer bus.Close()

	led := ledger.New(st, ledger.Options{
		Attempts: cfg.Command.DebitAttempts,
		Penalty:  cfg.Command.SubstitutionPenalty,
	})
	registry := command.NewRegistry(led, bus)
	fleetModule, err := fleet.Register(registry, bus)
	if err != nil {
		log.Fatal().Err(err).Msg("register fleet commands failed")
	}
	defer fleetModule.Close()

	recoverer := ledger.NewRecoverer(st, ledger.RecovererOptions{
		EveryTicks: cfg.Command.RecoveryEveryTicks,
		Amount:     cfg.Command.RecoveryAmount,
	})
	if recoverer.Enabled() {
		defer recoverer.Attach(bus)()
		go recoverer.Run(ctx)
	}

	pushCfg, err := eventpush.ConfigFromServer(cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("event push config failed")
	}
	pusher := eventpush.NewManager(pushCfg)
	if pusher.Enabled() {
		defer pusher.Attach(bus)()
		if err := pusher.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("event push start failed")
		}
	}

	engine := gameclock.New(st, bus, gameclock.Options{
		TickInterval:    cfg.Clock.TickInterval,
		MaxCatchupTicks: cfg.Clock.MaxCatchupTicks,
		SyncEveryTicks:  cfg.Clock.SyncEveryTicks,
	})
	registerSessions(ctx, engine, cfg.Clock.Sessions)
	engine.Start(ctx)

	r := httptransport.NewRouter(cfg.Server, httptransport.Deps{
		Store:    st,
		Engine:   engine,
		Registry: registry,
		Bus:      bus,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("driver", cfg.Server.StoreDriver).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	engine.Stop(flushCtx)
}

func openBackend(cfg config.ServerConfig) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil || !cfg.AutoMigrate {
			return st, err
		}
		if err := st.Migrate(context.Background()); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("postgres migrations applied")
		return st, nil
	case config.StoreDriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.StoreDriverMemory:
		log.Warn().Msg("memory store selected; state is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func registerSessions(ctx context.Context, engine *gameclock.Engine, ids []string) {
	for _, id := range ids {
		info, err := engine.Register(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("session_id", id).Msg("session register failed")
			continue
		}
		log.Info().Str("session_id", id).Int64("tick", info.Tick).Str("game_date", info.GameDate.String()).Msg("session registered")
	}
}
