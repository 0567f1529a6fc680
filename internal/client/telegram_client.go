package client

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quizvideo/api/internal/config"
	"github.com/quizvideo/api/internal/queue"
)

// TelegramClient delivers finished renders to a Telegram chat via the Bot
// API sendVideo multipart upload. With no bot token configured the client is
// disabled at construction and every delivery attempt short-circuits with a
// descriptive error.
type TelegramClient struct {
	bot         *tgbotapi.BotAPI
	disabledErr string
}

// NewTelegramClient creates a new delivery client. Initialization problems
// disable delivery instead of failing the server; the condition is logged
// once here.
func NewTelegramClient(cfg *config.TelegramConfig) *TelegramClient {
	if cfg.BotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, automatic video sending is disabled")
		return &TelegramClient{disabledErr: "telegram delivery disabled: bot token not configured"}
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		log.Printf("Warning: telegram bot initialization failed, video sending is disabled: %v", err)
		return &TelegramClient{disabledErr: fmt.Sprintf("telegram delivery disabled: %v", err)}
	}

	log.Printf("Telegram delivery enabled as @%s", bot.Self.UserName)
	return &TelegramClient{bot: bot}
}

func (c *TelegramClient) IsConfigured() bool {
	return c.bot != nil
}

// Deliver uploads the artifact to chatID. It never fails the job: missing
// configuration, transport errors and API rejections all come back as data
// on the result.
func (c *TelegramClient) Deliver(ctx context.Context, artifact []byte, chatID, jobID string) queue.DeliveryResult {
	if chatID == "" {
		return queue.DeliveryResult{Sent: false, Err: "missing destination"}
	}
	if c.bot == nil {
		return queue.DeliveryResult{Sent: false, Err: c.disabledErr}
	}

	file := tgbotapi.FileBytes{
		Name:  jobID + ".mp4",
		Bytes: artifact,
	}
	var video tgbotapi.VideoConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		video = tgbotapi.NewVideo(id, file)
	} else {
		// Non-numeric destinations are channel usernames.
		video = tgbotapi.NewVideo(0, file)
		video.ChannelUsername = chatID
	}
	video.Caption = fmt.Sprintf("Your quiz video (%s) is ready!", jobID)

	if _, err := c.bot.Send(video); err != nil {
		log.Printf("Failed to send video for job %s to chat %s: %v", jobID, chatID, err)
		return queue.DeliveryResult{Sent: false, Err: err.Error()}
	}

	log.Printf("Sent video for job %s to chat %s", jobID, chatID)
	return queue.DeliveryResult{Sent: true}
}
