package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/bot/handlers"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers

	// Updates of one user are never handled concurrently.
	locks sync.Map // int64 -> *sync.Mutex
}

func New(api *tgbotapi.BotAPI, h *handlers.Handlers) *Bot {
	return &Bot{api: api, handlers: h}
}

func (b *Bot) Start(ctx context.Context) error {
	log.Info().Str("account", b.api.Self.UserName).Msg("authorized")

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(handlers.Commands()...)); err != nil {
		log.Warn().Err(err).Msg("failed to register bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) lock(userID int64) *sync.Mutex {
	m, _ := b.locks.LoadOrStore(userID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("recovered from panic in update handler")
		}
	}()

	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		mu := b.lock(update.CallbackQuery.From.ID)
		mu.Lock()
		defer mu.Unlock()
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	mu := b.lock(update.Message.From.ID)
	mu.Lock()
	defer mu.Unlock()

	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}
	b.handlers.HandleMessage(ctx, update.Message)
}
