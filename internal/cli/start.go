package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-party-service/internal/app"
	"trivia-party-service/internal/config"
	"trivia-party-service/internal/infra/memory"
	"trivia-party-service/internal/infra/opentdb"
	"trivia-party-service/internal/infra/postgres"
	redisstore "trivia-party-service/internal/infra/redis"
	transport "trivia-party-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.port != "" {
				cfg.Server.Port = opts.port
			}
			return runServer(cmd.Context(), cfg, slog.Default())
		},
	}
}

// questionSource is what the configured trivia.source provides.
type questionSource interface {
	app.QuestionProvider
	transport.CategorySource
}

func runServer(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, closeRedis, err := openRedis(cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()
	store := redisstore.NewStore(redisClient, config.Duration(cfg.Redis.TTL, time.Hour))

	source, closeSource, err := openQuestionSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	hub := transport.NewHub(log)
	coordinator := app.NewCoordinator(store, source, hub, app.Options{
		DefaultAmount:    cfg.Game.DefaultAmount,
		DefaultTimeLimit: cfg.Game.DefaultTimeLimit,
		Tick:             config.Duration(cfg.Game.Tick, time.Second),
		SettleDelay:      config.Duration(cfg.Game.SettleDelay, 3*time.Second),
		Logger:           log,
	})

	origins := transport.NewOriginPolicy(cfg.Server.AllowedOrigins)
	ws := transport.NewWSHandler(ctx, coordinator, hub, origins, log)
	router := transport.NewRouter(ws, coordinator, transport.RouterConfig{
		PublicURL:  cfg.Server.PublicURL,
		Origins:    origins,
		Categories: source,
		Health:     store.Ping,
	}, log)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Bind, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("starting trivia server", "addr", server.Addr, "source", cfg.Trivia.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRedis connects to the configured redis, or starts an embedded
// miniredis when no address is set.
func openRedis(cfg config.Config, log *slog.Logger) (*redis.Client, func(), error) {
	addr := cfg.Redis.Addr
	var embedded *miniredis.Miniredis
	if addr == "" {
		var err error
		embedded, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		addr = embedded.Addr()
		log.Warn("redis.addr not set, using embedded in-memory store", "addr", addr)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closeFn := func() {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
	}
	return client, closeFn, nil
}

func openQuestionSource(ctx context.Context, cfg config.Config, log *slog.Logger) (questionSource, func(), error) {
	switch cfg.Trivia.Source {
	case config.SourcePostgres:
		if cfg.Postgres.URL == "" {
			return nil, nil, fmt.Errorf("trivia.source is postgres but postgres.url is empty")
		}
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewQuestionBank(pool), pool.Close, nil

	case config.SourceStatic:
		log.Info("using built-in question bank")
		return memory.NewQuestionBank(memory.SampleQuestions()), func() {}, nil

	case config.SourceOpenTDB, "":
		client := opentdb.NewClient(
			cfg.Trivia.BaseURL,
			config.Duration(cfg.Trivia.Timeout, 10*time.Second),
			config.Duration(cfg.Trivia.CategoriesTTL, time.Hour),
		)
		return client, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown trivia.source %q", cfg.Trivia.Source)
}
