// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/HanZheTing7/ReservelyGithub/internal/chat"
	"github.com/HanZheTing7/ReservelyGithub/internal/config"
	"github.com/HanZheTing7/ReservelyGithub/internal/database"
	"github.com/HanZheTing7/ReservelyGithub/internal/dispatch"
	"github.com/HanZheTing7/ReservelyGithub/internal/handler"
	"github.com/HanZheTing7/ReservelyGithub/internal/jobs"
	"github.com/HanZheTing7/ReservelyGithub/internal/logging"
	"github.com/HanZheTing7/ReservelyGithub/internal/memstore"
	"github.com/HanZheTing7/ReservelyGithub/internal/repository"
	"github.com/HanZheTing7/ReservelyGithub/internal/service"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
	"github.com/HanZheTing7/ReservelyGithub/internal/whatsapp"
)

// stores bundles one backend's implementations of the store contracts.
type stores struct {
	members       store.Membership
	changes       store.Subscriber
	events        store.Events
	profiles      store.Profiles
	notifications store.Notifications
	pool          *pgxpool.Pool // nil for the memory backend
}

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("RESERVELY_CONFIG"), "path to a YAML config file")
	storeKind := flag.String("store", "", "store backend: postgres or memory (overrides config)")
	port := flag.StringP("port", "p", "", "HTTP port (overrides config)")
	migrate := flag.Bool("migrate", true, "apply the database schema on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *storeKind != "" {
		cfg.Store = *storeKind
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, *migrate, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, migrate bool, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, migrate, log)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	// ── 2. Side-effect backends ──────────────────────────────────────────
	notes := service.NewNotificationService(st.notifications, cfg.Notifications.TTL,
		cfg.Notifications.Retention, logging.Component(log, "notifications"))

	var (
		chatSvc *chat.Service
		wa      *whatsapp.Service
	)
	if cfg.Chat.Enabled {
		wa, err = whatsapp.NewService(ctx, whatsapp.Config{
			DataDir:            cfg.Chat.DataDir,
			DefaultCountryCode: cfg.Chat.DefaultCountryCode,
		}, logging.Component(log, "whatsapp"))
		if err != nil {
			return fmt.Errorf("whatsapp: %w", err)
		}
		defer wa.Disconnect()
		go func() {
			if err := wa.Connect(ctx); err != nil {
				log.Error().Err(err).Msg("whatsapp connect failed")
			}
		}()
		chatSvc = chat.NewService(st.events, st.profiles, wa, logging.Component(log, "chat"))
	}

	// A nil *chat.Service must reach the dispatcher as a nil interface.
	var chatMembers dispatch.ChatMembership
	if chatSvc != nil {
		chatMembers = chatSvc
	}
	dispatcher := dispatch.New(cfg.Dispatch, notes, chatMembers, logging.Component(log, "dispatch"))

	// ── 3. Services ──────────────────────────────────────────────────────
	reconciler := service.NewReconciler(st.members, st.events, st.profiles, dispatcher,
		logging.Component(log, "reconciler"),
		service.WithStrictCapacity(cfg.Capacity.Strict),
	)
	eventSvc := service.NewEventService(st.events, st.members, st.profiles)

	// ── 4. Background jobs ───────────────────────────────────────────────
	jobLog := logging.Component(log, "jobs")
	scheduler := jobs.NewScheduler(jobLog)
	scheduler.Add(jobs.Job{
		Name:     "purge-notifications",
		Interval: cfg.Notifications.PurgeInterval,
		Run:      jobs.PurgeNotifications(notes),
	})
	if chatSvc != nil {
		scheduler.Add(jobs.Job{
			Name:     "freeze-chats",
			Interval: cfg.Chat.FreezeInterval,
			Run: jobs.FreezeChats(st.events, chatSvc, cfg.Chat.FreezeAfter,
				func() time.Time { return time.Now().UTC() }, jobLog),
		})
	}
	scheduler.Start(ctx)

	// ── 5. HTTP server with graceful shutdown ────────────────────────────
	h := handler.New(eventSvc, reconciler, notes, chatSvc, st.changes, logging.Component(log, "http"))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.NewRouter(h, logging.Component(log, "access")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Bool("strict_capacity", cfg.Capacity.Strict).
			Bool("chat", cfg.Chat.Enabled).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	stop()
	scheduler.Wait()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending side effects abandoned")
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, migrate bool, log zerolog.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn().Msg("using the in-memory store; data is lost on restart")
		mem := memstore.New()
		return &stores{
			members:       mem,
			changes:       mem,
			events:        mem,
			profiles:      mem,
			notifications: mem,
		}, nil

	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logging.Component(log, "database"))
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		members := repository.NewMembershipStore(pool, logging.Component(log, "membership"))
		return &stores{
			members:       members,
			changes:       members,
			events:        repository.NewEventRepository(pool),
			profiles:      repository.NewUserRepository(pool),
			notifications: repository.NewNotificationRepository(pool),
			pool:          pool,
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
