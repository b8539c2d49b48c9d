// Package bot is the Telegram front end: it turns updates into pipeline calls
// and keeps a single status message per request edited in place.
package bot

import (
	"context"
	"errors"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"notebot/notebot/controllers"
	httputils "notebot/notebot/utils/http"
	"notebot/notebot/utils/logging"
)

const HelpText = "Welcome to your AI Note Bot!\n\n" +
	"Commands:\n" +
	"- Send text or voice to add a note.\n" +
	"- /search <query>: Search your notes.\n" +
	"- /analyze: Analyze all your notes.\n" +
	"- /help: Show this help message."

// Messenger is the subset of *tgbotapi.BotAPI the handler needs.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Notes interface {
	AddTextNote(ctx context.Context, userID int64, text string, status controllers.StatusFunc) (controllers.Receipt, error)
	AddVoiceNote(ctx context.Context, userID int64, fetch controllers.FetchAudio, status controllers.StatusFunc) (controllers.Receipt, error)
	Search(ctx context.Context, userID int64, query string, status controllers.StatusFunc) (string, error)
	Analyze(ctx context.Context, userID int64, status controllers.StatusFunc) (string, error)
}

type Handler struct {
	api   Messenger
	notes Notes
}

func NewHandler(api Messenger, notes Notes) *Handler {
	return &Handler{api: api, notes: notes}
}

// Handle processes one update. Errors are reported to the chat, never returned.
func (h *Handler) Handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	ctx = logging.WithTraceID(ctx)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("Exception while handling an update",
				zap.Any("recover", r), zap.ByteString("stack", debug.Stack()))
			h.reply(msg.Chat.ID, controllers.ErrorMessage, "")
		}
	}()

	var err error
	switch {
	case msg.IsCommand():
		err = h.command(ctx, msg)
	case msg.Voice != nil:
		err = h.voice(ctx, msg)
	case msg.Text != "":
		err = h.text(ctx, msg)
	}
	if err != nil {
		logging.ErrorLogger.Error("Exception while handling an update",
			zap.String("trace_id", logging.TraceID(ctx)),
			zap.Int64("user_id", msg.From.ID),
			zap.Error(err))
		h.reply(msg.Chat.ID, controllers.ErrorMessage, "")
	}
}

func (h *Handler) command(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID
	status := h.newStatus(msg.Chat.ID)

	switch msg.Command() {
	case "start", "help":
		h.reply(msg.Chat.ID, HelpText, "")
		return nil
	case "search":
		result, err := h.notes.Search(ctx, userID, msg.CommandArguments(), status.update)
		if err != nil {
			return err
		}
		status.finish(result, "")
		return nil
	case "analyze":
		result, err := h.notes.Analyze(ctx, userID, status.update)
		if err != nil {
			return err
		}
		status.finish(result, "")
		return nil
	default:
		logging.AppLogger.Debug("Ignoring unknown command", zap.String("command", msg.Command()))
		return nil
	}
}

func (h *Handler) text(ctx context.Context, msg *tgbotapi.Message) error {
	status := h.newStatus(msg.Chat.ID)
	receipt, err := h.notes.AddTextNote(ctx, msg.From.ID, msg.Text, status.update)
	if err != nil {
		return err
	}
	status.finish(receipt.Message(), tgbotapi.ModeMarkdown)
	return nil
}

func (h *Handler) voice(ctx context.Context, msg *tgbotapi.Message) error {
	status := h.newStatus(msg.Chat.ID)
	fetch := func(ctx context.Context) (string, error) {
		url, err := h.api.GetFileDirectURL(msg.Voice.FileID)
		if err != nil {
			return "", err
		}
		return httputils.DownloadToFile(ctx, url, "voice-*.ogg")
	}

	receipt, err := h.notes.AddVoiceNote(ctx, msg.From.ID, fetch, status.update)
	if errors.Is(err, controllers.ErrNoSpeech) {
		return nil
	}
	if err != nil {
		return err
	}
	// the status message keeps the transcript; the receipt is a new message
	h.reply(msg.Chat.ID, receipt.Message(), tgbotapi.ModeMarkdown)
	return nil
}

// reply sends text, retrying without parse mode when Telegram rejects the markup.
func (h *Handler) reply(chatID int64, text, parseMode string) tgbotapi.Message {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = parseMode
	sent, err := h.api.Send(m)
	if err != nil && parseMode != "" {
		m.ParseMode = ""
		sent, err = h.api.Send(m)
	}
	if err != nil {
		logging.ErrorLogger.Error("Telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent
}

// statusMessage is sent on the first update and edited afterwards.
type statusMessage struct {
	h         *Handler
	chatID    int64
	messageID int
}

func (h *Handler) newStatus(chatID int64) *statusMessage {
	return &statusMessage{h: h, chatID: chatID}
}

func (s *statusMessage) update(text string) {
	s.finish(text, "")
}

func (s *statusMessage) finish(text, parseMode string) {
	if s.messageID == 0 {
		s.messageID = s.h.reply(s.chatID, text, parseMode).MessageID
		return
	}
	edit := tgbotapi.NewEditMessageText(s.chatID, s.messageID, text)
	edit.ParseMode = parseMode
	_, err := s.h.api.Send(edit)
	if err != nil && parseMode != "" {
		edit.ParseMode = ""
		_, err = s.h.api.Send(edit)
	}
	if err != nil {
		logging.ErrorLogger.Error("Telegram edit failed",
			zap.Int64("chat_id", s.chatID), zap.Int("message_id", s.messageID), zap.Error(err))
	}
}
