package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/models"
)

var summaryTimes = []string{"08:00", "12:00", "18:00", "20:00", "21:00", "22:00"}

var localeNames = map[string]string{
	models.LocaleEnglish: "English",
	models.LocaleBengali: "বাংলা",
}

const settingsUsage = "Usage:\n" +
	"/settings\n" +
	"/settings language <en|bn>\n" +
	"/settings timezone <Area/City>\n" +
	"/settings time <HH:MM>"

// handleSettings shows the settings menu, or changes one setting directly.
func (h *Handlers) handleSettings(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if h.deps.Settings == nil {
		h.sendMessage(msg.Chat.ID, "Settings are not available.")
		return
	}
	userID := msg.From.ID
	if len(args) == 0 {
		settings := h.settings(ctx, userID)
		h.replyWithKeyboard(msg.Chat.ID, settingsMainText(settings), settingsMainKeyboard())
		return
	}
	if len(args) != 2 {
		h.sendMessage(msg.Chat.ID, settingsUsage)
		return
	}

	value := args[1]
	var err error
	switch strings.ToLower(args[0]) {
	case "language", "lang", "locale":
		value = strings.ToLower(value)
		if !models.ValidLocale(value) {
			h.sendMessage(msg.Chat.ID, "❌ Supported languages: en, bn")
			return
		}
		err = h.deps.Settings.SetLocale(ctx, userID, value)
	case "timezone", "tz":
		if _, lerr := time.LoadLocation(value); lerr != nil {
			h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ Unknown timezone %q. Example: Asia/Dhaka", value))
			return
		}
		err = h.deps.Settings.SetTimezone(ctx, userID, value)
	case "time":
		if _, perr := time.Parse("15:04", value); perr != nil {
			h.sendMessage(msg.Chat.ID, "❌ Use HH:MM, for example 21:00")
			return
		}
		err = h.deps.Settings.SetDailySummaryTime(ctx, userID, value)
	default:
		h.sendMessage(msg.Chat.ID, settingsUsage)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to update settings")
		h.sendMessage(msg.Chat.ID, "Failed to update settings, please try again later.")
		return
	}
	h.reply(msg.Chat.ID, settingsMainText(h.settings(ctx, userID)))
}

// handleSettingsCallback handles "settings:..." callbacks. parts excludes
// the leading "settings".
func (h *Handlers) handleSettingsCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	if h.deps.Settings == nil || len(parts) == 0 {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	switch parts[0] {
	case "main":
		h.showSettingsMain(ctx, chatID, messageID, userID)

	case "lang":
		if len(parts) > 1 && models.ValidLocale(parts[1]) {
			if err := h.deps.Settings.SetLocale(ctx, userID, parts[1]); err != nil {
				log.Error().Err(err).Int64("user_id", userID).Msg("failed to set locale")
			}
			h.showSettingsMain(ctx, chatID, messageID, userID)
			return
		}
		h.showLanguagePicker(chatID, messageID)

	case "summary":
		if len(parts) == 1 {
			h.showSummarySettings(ctx, chatID, messageID, userID)
			return
		}
		switch parts[1] {
		case "toggle":
			h.toggleDailySummary(ctx, chatID, messageID, userID)
		case "time":
			// The time itself contains a colon.
			if len(parts) > 2 {
				h.setDailySummaryTime(ctx, chatID, messageID, userID, strings.Join(parts[2:], ":"))
			} else {
				h.showSummaryTimePicker(chatID, messageID)
			}
		}

	case "close":
		if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
			log.Error().Err(err).Msg("failed to delete settings message")
		}
	}
}

func status(enabled bool) string {
	if enabled {
		return "✅ On"
	}
	return "❌ Off"
}

func settingsMainText(s *models.UserSettings) format.Message {
	var b format.Builder
	b.Header("⚙️ Settings")
	b.Field("Language", localeNames[s.Locale])
	b.Field("Timezone", s.Timezone)
	b.Field("Daily summary", fmt.Sprintf("%s (%s)", status(s.DailySummaryEnabled), s.DailySummaryTime))
	return b.Message()
}

func settingsMainKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌐 Language", "settings:lang"),
			tgbotapi.NewInlineKeyboardButtonData("☀️ Daily summary", "settings:summary"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Close", "settings:close"),
		),
	)
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings:main"),
	)
}

func (h *Handlers) showSettingsMain(ctx context.Context, chatID int64, messageID int, userID int64) {
	h.editMessageWithKeyboard(chatID, messageID, settingsMainText(h.settings(ctx, userID)), settingsMainKeyboard())
}

func (h *Handlers) showLanguagePicker(chatID int64, messageID int) {
	var b format.Builder
	b.Header("🌐 Language")
	b.Line("Used to read free text transactions.")

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(localeNames[models.LocaleEnglish], "settings:lang:"+models.LocaleEnglish),
			tgbotapi.NewInlineKeyboardButtonData(localeNames[models.LocaleBengali], "settings:lang:"+models.LocaleBengali),
		),
		backRow(),
	)
	h.editMessageWithKeyboard(chatID, messageID, b.Message(), keyboard)
}

func (h *Handlers) showSummarySettings(ctx context.Context, chatID int64, messageID int, userID int64) {
	settings := h.settings(ctx, userID)

	var b format.Builder
	b.Header("☀️ Daily summary")
	b.Field("Status", status(settings.DailySummaryEnabled))
	b.Field("Time", settings.DailySummaryTime)
	b.Line("Yesterday's totals and the month so far, once a day.")

	toggleLabel := "❌ Turn off"
	if !settings.DailySummaryEnabled {
		toggleLabel = "✅ Turn on"
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggleLabel, "settings:summary:toggle"),
			tgbotapi.NewInlineKeyboardButtonData("🕘 Time", "settings:summary:time"),
		),
		backRow(),
	)
	h.editMessageWithKeyboard(chatID, messageID, b.Message(), keyboard)
}

func (h *Handlers) toggleDailySummary(ctx context.Context, chatID int64, messageID int, userID int64) {
	settings := h.settings(ctx, userID)
	if err := h.deps.Settings.SetDailySummaryEnabled(ctx, userID, !settings.DailySummaryEnabled); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to toggle daily summary")
	}
	h.showSummarySettings(ctx, chatID, messageID, userID)
}

func (h *Handlers) showSummaryTimePicker(chatID int64, messageID int) {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, t := range summaryTimes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t, "settings:summary:time:"+t))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings:summary"),
	))

	var b format.Builder
	b.Header("🕘 Daily summary time")
	b.Text("Pick a time, or send ").Code("/settings time HH:MM")
	h.editMessageWithKeyboard(chatID, messageID, b.Message(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *Handlers) setDailySummaryTime(ctx context.Context, chatID int64, messageID int, userID int64, value string) {
	if _, err := time.Parse("15:04", value); err != nil {
		return
	}
	if err := h.deps.Settings.SetDailySummaryTime(ctx, userID, value); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to set daily summary time")
	}
	h.showSummarySettings(ctx, chatID, messageID, userID)
}
