// Package main contains the entrypoint for the affirmation channel bot.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"

	"github.com/edgard/affirmabot/internal/admin"
	"github.com/edgard/affirmabot/internal/bot"
	"github.com/edgard/affirmabot/internal/bot/handlers"
	"github.com/edgard/affirmabot/internal/bot/session"
	"github.com/edgard/affirmabot/internal/bot/tasks"
	"github.com/edgard/affirmabot/internal/config"
	"github.com/edgard/affirmabot/internal/database"
	"github.com/edgard/affirmabot/internal/gemini"
	"github.com/edgard/affirmabot/internal/logger"
	"github.com/edgard/affirmabot/internal/metrics"
	"github.com/edgard/affirmabot/internal/publisher"
	"github.com/edgard/affirmabot/internal/render"
	"github.com/edgard/affirmabot/internal/rotation"
	"github.com/edgard/affirmabot/internal/scheduler"
	"github.com/edgard/affirmabot/internal/telegram"

	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires all components, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load env file", "path", *envPath, "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	if _, err := store.SeedSchedule(ctx, cfg.Scheduler.DefaultTimes); err != nil {
		log.Error("Failed to seed default schedule", "error", err)
		return 1
	}
	if cfg.Publisher.SeedContent {
		if _, err := store.SeedContent(ctx, config.DefaultAffirmations); err != nil {
			log.Error("Failed to seed initial content", "error", err)
			return 1
		}
	}

	renderer, err := render.NewRenderer(render.Options{
		Width:    cfg.Render.Width,
		Height:   cfg.Render.Height,
		Margin:   cfg.Render.Margin,
		FontSize: cfg.Render.FontSize,
		FontPath: cfg.Render.FontPath,
	})
	if err != nil {
		log.Error("Failed to initialize renderer", "error", err)
		return 1
	}
	cards := render.NewCache(cfg.Render.CacheDir, renderer, log)

	// Generation is optional; without an API key generate mode reports a generation error.
	var generator publisher.Generator
	if cfg.Gemini.APIKey != "" {
		gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
		generator = gemClient
	} else {
		log.Warn("Gemini API key not set, generate mode is unavailable")
	}

	m := metrics.New()

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Sessions: session.NewTable(session.DefaultTTL),
	}
	// Bound once the admin service exists; no update arrives before app.Run.
	var onInput tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			onInput(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	pub := publisher.New(publisher.Deps{
		Logger:    log,
		Store:     store,
		Selector:  rotation.NewSelector(store, log),
		Generator: generator,
		Cards:     cards,
		Sender:    telegram.NewChannelSender(tg, log),
		Metrics:   m,
		ChannelID: cfg.Telegram.ChannelID,
	})

	sched, err := scheduler.New(scheduler.Deps{
		Logger: log,
		Source: store,
		Publish: func(ctx context.Context) error {
			_, err := pub.Publish(ctx)
			return err
		},
		Tasks:    tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store, Cards: cards, Config: cfg}),
		Config:   &cfg.Scheduler,
		Location: cfg.Location(),
		Metrics:  m,
	})
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	hDeps.Admin = admin.NewService(admin.Deps{
		Logger:    log,
		Store:     store,
		Scheduler: sched,
		Publisher: pub,
		Cards:     cards,
	})

	onInput = handlers.AdminOnly(hDeps)(handlers.NewInputHandler(hDeps))

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	var servers []bot.Server
	if cfg.Metrics.ListenAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.Metrics.ListenAddr, m, log))
	}
	app := bot.NewBot(log, tg, sched, servers...)

	log.Info("Starting bot...", "channel", cfg.Telegram.ChannelID, "timezone", cfg.Scheduler.Timezone)
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
