package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/ai"
	"github.com/hray3182/SpendWise/internal/auth"
	"github.com/hray3182/SpendWise/internal/bot"
	"github.com/hray3182/SpendWise/internal/bot/handlers"
	"github.com/hray3182/SpendWise/internal/charts"
	"github.com/hray3182/SpendWise/internal/config"
	"github.com/hray3182/SpendWise/internal/database"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/logging"
	"github.com/hray3182/SpendWise/internal/repository"
	"github.com/hray3182/SpendWise/internal/scheduler"
	"github.com/hray3182/SpendWise/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.DevMode)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations completed")

	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewUserSettingsRepository(db)
	recurringRepo := repository.NewRecurringRepository(db)
	documents := repository.NewDocumentRepository(db)
	defer documents.Close()

	provider := auth.NewProvider(userRepo)
	sessions := session.NewManager(documents, provider, ledger.WithMergeDefaults(cfg.MergeDefaultCategories))
	defer sessions.Close()

	// A nil *ai.Client must not end up in the interface.
	var advisor handlers.Advisor
	if cfg.AIAPIKey != "" {
		advisor = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Info().Str("model", cfg.AIModel).Msg("AI client initialized")
	} else {
		log.Info().Msg("AI client not configured, free text entry and search disabled")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Telegram API")
	}
	api.Debug = cfg.DevMode

	sched := scheduler.New(api, sessions, recurringRepo, settingsRepo, cfg.SchedulerInterval)
	go sched.Start(ctx)

	h := handlers.New(api, handlers.Deps{
		Auth:      provider,
		Sessions:  sessions,
		Settings:  settingsRepo,
		Rules:     recurringRepo,
		AI:        advisor,
		Charts:    charts.NewGenerator(),
		Scheduler: sched,
	}, cfg.DevMode)

	log.Info().Msg("starting bot")
	if err := bot.New(api, h).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("shutting down")
}
