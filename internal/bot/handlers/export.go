package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/export"
	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/report"
)

// maxImportSize bounds uploaded snapshot files.
const maxImportSize = 5 << 20

var errImportTooLarge = errors.New("file is too large")

func (h *Handlers) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	b, name, err := store.ExportSnapshot()
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to export snapshot")
		h.sendMessage(msg.Chat.ID, "Export failed.")
		return
	}
	data := store.Snapshot()
	h.sendDocument(msg.Chat.ID, name, b, fmt.Sprintf("💾 %d transaction(s). Send this file back with the caption /import to restore it.", len(data.Transactions)))
}

func (h *Handlers) handleXLSX(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	data := store.Snapshot()
	f, ok := h.reportFilter(ctx, msg, args, data, "xlsx")
	if !ok {
		return
	}
	res := report.Apply(data.Transactions, f)
	if len(res.Transactions) == 0 {
		h.sendMessage(msg.Chat.ID, "No matching transactions to export.")
		return
	}

	from, to := reportRange(f, h.localNow(ctx, msg.From.ID))
	b, err := export.XLSX(res, from, to)
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to build xlsx report")
		h.sendMessage(msg.Chat.ID, "Failed to build the spreadsheet.")
		return
	}
	h.sendDocument(msg.Chat.ID, export.ReportFilename(from, to), b, "📑 "+describeFilter(f))
}

// download fetches an uploaded Telegram file.
func (h *Handlers) download(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	if doc.FileSize > maxImportSize {
		return nil, errImportTooLarge
	}
	url, err := h.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(b) > maxImportSize {
		return nil, errImportTooLarge
	}
	return b, nil
}

func (h *Handlers) handleImport(ctx context.Context, msg *tgbotapi.Message) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	if msg.Document == nil {
		h.sendMessage(msg.Chat.ID, "Send an exported JSON file with the caption /import.")
		return
	}
	if name := strings.ToLower(msg.Document.FileName); name != "" && !strings.HasSuffix(name, ".json") {
		h.sendMessage(msg.Chat.ID, "❌ Please send a .json file created by /export.")
		return
	}

	b, err := h.download(ctx, msg.Document)
	if errors.Is(err, errImportTooLarge) {
		h.sendMessage(msg.Chat.ID, "❌ The file is too large.")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to download import file")
		h.sendMessage(msg.Chat.ID, "Failed to download the file, please try again.")
		return
	}

	if err := store.ImportSnapshot(b); err != nil {
		if errors.Is(err, export.ErrInvalidSnapshot) {
			h.sendMessage(msg.Chat.ID, "❌ Invalid JSON file. "+err.Error())
			return
		}
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to import snapshot")
		h.sendMessage(msg.Chat.ID, "Import failed.")
		return
	}
	data := store.Snapshot()
	log.Info().Int64("user_id", msg.From.ID).Int("transactions", len(data.Transactions)).Msg("snapshot imported")

	var out format.Builder
	out.Header("📥 Data imported")
	out.Field("Transactions", fmt.Sprint(len(data.Transactions)))
	out.Field("Income categories", fmt.Sprint(len(data.Categories.Income)))
	out.Field("Expense categories", fmt.Sprint(len(data.Categories.Expense)))
	if store.State() == ledger.ReadyWithDefaults {
		out.Newline().Italic("Your saved data is unavailable, so this import is kept only until you sign out.")
	}
	h.reply(msg.Chat.ID, out.Message())
}

func (h *Handlers) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := h.store(msg); !ok {
		return
	}
	var b format.Builder
	b.Header("⚠️ Reset all data?")
	b.Line("Every transaction will be deleted and the categories restored to the defaults.")
	b.Line("Consider /export first.")

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Reset", fmt.Sprintf("reset:confirm:%d", msg.From.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", fmt.Sprintf("reset:cancel:%d", msg.From.ID)),
		),
	)
	h.replyWithKeyboard(msg.Chat.ID, b.Message(), keyboard)
}

func (h *Handlers) handleResetCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, action string, userID int64) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if action != "confirm" {
		h.editMessage(chatID, messageID, format.Plain("Reset cancelled."))
		return
	}
	store, err := h.deps.Sessions.Get(userID)
	if err != nil {
		h.editMessage(chatID, messageID, format.Plain("Please /login first."))
		return
	}
	store.ResetToDefaults()
	log.Info().Int64("user_id", userID).Msg("data reset to defaults")
	h.editMessage(chatID, messageID, format.Plain("✅ All data was reset to the defaults."))
}
