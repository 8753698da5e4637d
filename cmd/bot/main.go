package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printmatch/db"
	"printmatch/db/migrations"
	"printmatch/internal/config"
	"printmatch/internal/dispatch"
	"printmatch/internal/handlers"
	"printmatch/internal/matching"
	"printmatch/internal/session"
	"printmatch/internal/telegram"
	"printmatch/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// pollTimeout - long polling getUpdates, секунды
const pollTimeout = 60

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB, logger); err != nil {
		return err
	}
	store := db.NewStorage(dbConn, cfg.QueryTimeout)

	kv, err := session.OpenBadger(cfg.SessionDir)
	if err != nil {
		return err
	}
	defer kv.Close()
	sessions := session.NewBadgerStore(kv)

	var (
		api     *tgbotapi.BotAPI
		gateway dispatch.Gateway
	)
	if cfg.HTTPOnly {
		// без транспорта исходящие уведомления только пишутся в лог
		gateway = dispatch.GatewayFunc(func(_ context.Context, recipient int64, msg dispatch.Message) error {
			logger.Info("outbound message", "recipient", recipient, "text", msg.Text)
			return nil
		})
	} else {
		api, err = tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint,
			telegram.HTTPClient(pollTimeout, cfg.SendTimeout))
		if err != nil {
			return err
		}
		logger.Info("authorized", "bot", api.Self.UserName)
		if err := telegram.SetCommands(api, workflow.Commands); err != nil {
			logger.Warn("set bot commands", "error", err)
		}
		gateway = telegram.NewGateway(api)
	}
	gateway = dispatch.WithTimeout(gateway, cfg.SendTimeout)

	engine := matching.NewEngine(store, gateway, cfg.FanoutParallelism, logger)
	router := workflow.NewRouter(sessions, store, engine, workflow.NewAdminSet(cfg.AdminIDs...), logger)
	h := handlers.NewHandler(store, router, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// события участников без чата; при живом транспорте участника
		// подтверждает только он
		if cfg.HTTPOnly {
			r.Post("/participants/{participantId}/events", h.EventHandler)
		}
		// заказы
		r.Get("/orders/{orderId}", h.GetOrderHandler)
		r.Get("/orders/{orderId}/bids", h.GetBidsForOrderHandler)
	})

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if api != nil {
		g.Go(func() error {
			p := &telegram.Poller{
				API:     api,
				Gateway: gateway,
				Router:  router,
				Workers: cfg.FanoutParallelism,
				Timeout: pollTimeout,
				Logger:  logger,
			}
			return p.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}
