package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"afterschool-toast/internal/handlers"
)

// commandTimeout bounds the roster work done for a single update
const commandTimeout = 10 * time.Second

var (
	bot          *tgbotapi.BotAPI
	targetChatID int64
	commands     *handlers.CommandHandler
	logger       = zap.NewNop()
)

// Init initializes the Telegram Bot. When authorizedChatIDStr is set, only that
// chat is answered and it receives the ratio alerts.
func Init(token string, authorizedChatIDStr string, handler *handlers.CommandHandler, l *zap.Logger) error {
	var err error
	bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}
	bot.Debug = false

	commands = handler
	if l != nil {
		logger = l
	}
	logger.Info("bot authorized", zap.String("account", bot.Self.UserName))

	if authorizedChatIDStr != "" {
		id, err := strconv.ParseInt(authorizedChatIDStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", authorizedChatIDStr, err)
		}
		targetChatID = id
	}
	return nil
}

// StartPolling starts the update loop. It stops when ctx is cancelled.
func StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				handleCallback(ctx, update.CallbackQuery)
				continue
			}

			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !authorized(update.Message.Chat.ID) {
				logger.Warn("ignoring command from unknown chat", zap.Int64("chat", update.Message.Chat.ID))
				continue
			}

			var msg tgbotapi.MessageConfig
			switch update.Message.Command() {
			case "getid":
				msg = tgbotapi.NewMessage(update.Message.Chat.ID, fmt.Sprintf("Chat ID: %d", update.Message.Chat.ID))
			default:
				cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
				reply := commands.Handle(cmdCtx, update.Message.Command(), strings.Fields(update.Message.CommandArguments()))
				cancel()
				msg = replyMessage(update.Message.Chat.ID, reply)
			}

			if _, err := bot.Send(msg); err != nil {
				logger.Error("bot send error", zap.Error(err))
			}
		}
	}()
}

func authorized(chatID int64) bool {
	return targetChatID == 0 || chatID == targetChatID
}

// replyMessage renders a command reply, adding the confirm/cancel keyboard for held moves
func replyMessage(chatID int64, reply handlers.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.PendingMoveID != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Move anyway", handlers.CallbackConfirmMove+reply.PendingMoveID),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", handlers.CallbackDeclineMove+reply.PendingMoveID),
			),
		)
	}
	return msg
}

func handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || !authorized(query.Message.Chat.ID) {
		if _, err := bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			logger.Error("callback answer error", zap.Error(err))
		}
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	reply := commands.HandleCallback(cmdCtx, query.Data)
	cancel()

	if _, err := bot.Request(tgbotapi.NewCallback(query.ID, "OK")); err != nil {
		logger.Error("callback answer error", zap.Error(err))
	}

	// Drop the keyboard so the move cannot be answered twice.
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, reply.Text)
	if _, err := bot.Send(edit); err != nil {
		logger.Error("bot edit error", zap.Error(err))
	}
}

// SendNotification sends message to the authorized chat
func SendNotification(message string) {
	if bot == nil || targetChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(targetChatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		logger.Error("failed to send notification", zap.Error(err))
	}
}
