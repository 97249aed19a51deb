package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/bot"
	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/internal/gateway"
	"github.com/Proton-105/studio-booking-bot/internal/health"
	"github.com/Proton-105/studio-booking-bot/internal/i18n"
	"github.com/Proton-105/studio-booking-bot/internal/idempotency"
	"github.com/Proton-105/studio-booking-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/studio-booking-bot/internal/jobs/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/lifecycle"
	"github.com/Proton-105/studio-booking-bot/internal/middleware"
	"github.com/Proton-105/studio-booking-bot/internal/ratelimit"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/pkg/config"
	"github.com/Proton-105/studio-booking-bot/pkg/graceful"
	"github.com/Proton-105/studio-booking-bot/pkg/logger"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

const (
	sessionGaugeInterval = 30 * time.Second
	limiterCleanupEvery  = time.Minute
	limiterMaxAge        = time.Hour
	sentryFlushTimeout   = 2 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("studio booking bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	config.Watch(v, log, func(next *config.Config) {
		if err := logger.SetLevel(next.Logger.Level); err != nil {
			log.Warn("log level not changed", slog.Any("error", err))
		}
	})

	log.Info("starting studio booking bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("timezone", cfg.Venue.Timezone),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("database", cfg.Database.Enabled),
		slog.Bool("jobs", cfg.Jobs.Enabled),
	)

	loc, err := time.LoadLocation(cfg.Venue.Timezone)
	if err != nil {
		return fmt.Errorf("load venue timezone: %w", err)
	}

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdown.Execute(shutdownCtx); err != nil {
			log.Error("shutdown finished with errors", slog.Any("error", err))
		}
	}()

	checker := health.NewChecker(log)

	b, err := newBackends(ctx, cfg, log, shutdown, checker)
	if err != nil {
		return err
	}

	client, err := gateway.New(gateway.Config{
		BaseURLs:          cfg.Backend.URLs,
		Username:          cfg.Backend.Username,
		Password:          cfg.Backend.Password,
		GetTimeout:        cfg.Backend.GetTimeout,
		PostTimeout:       cfg.Backend.PostTimeout,
		MediaBaseURL:      cfg.Backend.MediaBase(),
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}
	checker.AddOptionalCheck("backend", client)

	catalog, err := i18n.Load(cfg.Templates.Language)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	texts := gateway.NewTemplateStore(client, b.cache, cfg.Templates.CacheTTL, catalog.Translator(cfg.Templates.Language), log)

	fsm := state.NewStateMachine(b.sessions, log, b.redisClient(), cfg.Session.TTL)

	slots, err := booking.NewSlotCalculator(loc, cfg.Venue.Open, cfg.Venue.Close)
	if err != nil {
		return fmt.Errorf("configure opening hours: %w", err)
	}

	notifier, err := newNotifier(cfg, client, log, shutdown)
	if err != nil {
		return err
	}

	idem := idempotency.NewManager(b.idempotency, log)
	engine := booking.NewEngine(booking.EngineDeps{
		FSM:         fsm,
		Catalog:     client,
		Texts:       texts,
		Slots:       slots,
		Guard:       booking.NewGuard(client, loc, log),
		Submitter:   booking.NewSubmitter(client, notifier, idem, log),
		BookingDays: cfg.Venue.BookingDays,
		Logger:      log,
	})

	rules, err := ratelimit.NewRules(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("configure rate limits: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = b.limiter
	}

	tgBot, err := bot.New(cfg.Bot, bot.Deps{
		Engine:       engine,
		Verifier:     b.verifier,
		Content:      client,
		Media:        client,
		Texts:        texts,
		Limiter:      limiter,
		Rules:        rules,
		Idempotency:  idem,
		ErrorHandler: apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Turns:        state.NewTurnLocker(),
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Debug("background task stopped", slog.String("task", name))
		}()
	}

	background("session cleaner", state.NewCleaner(b.sessions, log, cfg.Session.TTL, cfg.Session.CleanupInterval).Run)
	background("session gauge", metrics.NewStateCollector(fsm, sessionGaugeInterval).Run)
	if b.memoryLimiter != nil {
		background("rate limit cleaner", ratelimit.NewCleaner(b.memoryLimiter, limiterMaxAge, limiterCleanupEvery, log).Run)
	}

	ops := graceful.NewServer(log, &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           logger.Middleware(middleware.New(log)(opsMux(checker))),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- ops.ListenAndServe(ctx)
	}()

	go tgBot.Start()
	shutdown.Register("telegram bot", func(context.Context) error {
		tgBot.Stop()
		return nil
	})

	serverDone := false
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
		serverDone = true
	}

	// The bot stops first so no update arrives while its dependencies close.
	tgBot.Stop()
	cancel()
	wg.Wait()

	if !serverDone {
		select {
		case err := <-serverErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server stopped with error", slog.Any("error", err))
			}
		case <-time.After(cfg.Server.ShutdownTimeout):
			log.Warn("ops server did not stop in time")
		}
	}

	log.Info("studio booking bot stopped")
	return nil
}

func opsMux(checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	return mux
}

// newNotifier links created bookings to their chat through the asynq queue when jobs
// are enabled, in-process otherwise.
func newNotifier(cfg *config.Config, registrar jobs.ChatRegistrar, log *slog.Logger, shutdown *lifecycle.Shutdown) (*jobs.Notifier, error) {
	if !cfg.Jobs.Enabled {
		notifier := jobs.NewNotifier(nil, registrar, cfg.Jobs.MaxRetry, log)
		shutdown.Register("chat notifier", func(context.Context) error {
			notifier.Wait()
			return nil
		})
		return notifier, nil
	}
	if !cfg.Redis.Enabled {
		return nil, errors.New("jobs require redis to be enabled")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeRegisterChat, jobhandlers.NewRegisterChatHandler(registrar, log))
	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("start jobs worker: %w", err)
	}
	shutdown.Register("jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	queue := jobs.NewManager(redisOpt, log)
	notifier := jobs.NewNotifier(queue, registrar, cfg.Jobs.MaxRetry, log)
	shutdown.Register("jobs queue", func(context.Context) error {
		notifier.Wait()
		return queue.Close()
	})

	return notifier, nil
}
