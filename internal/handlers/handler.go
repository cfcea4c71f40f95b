package handlers

import (
	"context"
	"io"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"style-lock-studio/internal/mediagroup"
	"style-lock-studio/internal/session"
	"style-lock-studio/internal/studio"
	"style-lock-studio/internal/telegram"
)

// Messenger is the subset of the Telegram client the bot talks through.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, rows [][]telegram.Button) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, rows [][]telegram.Button) error
	AnswerCallback(callbackID, text string)
	SendTyping(chatID int64)
	SendUploadingPhoto(chatID int64)
	SendPhotoDataURL(chatID int64, dataURL string, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

// Studio analyzes references and renders requests. *studio.Service
// satisfies it.
type Studio interface {
	Analyze(ctx context.Context, img studio.Image) (studio.Analysis, error)
	Run(ctx context.Context, req studio.Request) (studio.Result, error)
}

type Options struct {
	Telegram Messenger
	Studio   Studio
	Sessions *session.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	studio     Studio
	sessions   *session.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}

	return &Handler{
		tg:       opts.Telegram,
		studio:   opts.Studio,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, username, msg)
	}

	if fileID, mimeType, ok := imageAttachment(msg); ok {
		return h.handlePhoto(ctx, chatID, userID, username, msg, fileID, mimeType)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, "Send me a photo to restyle, or /help for the commands.")
	}

	return nil
}

// HandleMediaGroup renders an album: the first photo is the structure, the
// second the style reference. Extra photos are ignored.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	primary, ok := group.Primary()
	if !ok {
		return
	}
	if len(group.Photos) > 2 {
		h.logger.Info("album has extra photos", "user_id", group.UserID, "photos", len(group.Photos))
	}

	job := renderJob{
		chatID:   group.ChatID,
		userID:   group.UserID,
		username: group.Username,
		caption:  group.Caption,
		primary:  photoRef{fileID: primary.FileID, mimeType: primary.MimeType},
	}
	if ref, ok := group.Reference(); ok {
		job.reference = &photoRef{fileID: ref.FileID, mimeType: ref.MimeType}
	}

	if err := h.render(ctx, job); err != nil {
		h.logger.Error("media group processing failed", "user_id", group.UserID, "err", err)
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message, fileID, mimeType string) error {
	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MessageID:    msg.MessageID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
			MimeType:     mimeType,
		})
		return nil
	}

	if h.sessions.Snapshot(userID, username).AwaitingReference {
		return h.storeReference(ctx, chatID, userID, username, photoRef{fileID: fileID, mimeType: mimeType})
	}

	return h.render(ctx, renderJob{
		chatID:   chatID,
		userID:   userID,
		username: username,
		caption:  msg.Caption,
		primary:  photoRef{fileID: fileID, mimeType: mimeType},
	})
}

// imageAttachment picks the largest photo size, or an image sent as a
// document. Documents keep their alpha channel; compressed photos do not.
func imageAttachment(msg *tgbotapi.Message) (string, string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, "image/jpeg", true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, msg.Document.MimeType, true
	}
	return "", "", false
}
