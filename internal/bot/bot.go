package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/nav"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// Bot is the Telegram surface of the app. It greets users, resolves
// deep-link payloads and hands off to the Mini App through an inline button.
type Bot struct {
	bot       *telebot.Bot
	repo      storage.Repository
	webAppURL string
}

// New creates the bot with long polling
func New(token string, repo storage.Repository, webAppURL string) (*Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{bot: b, repo: repo, webAppURL: webAppURL}
	bot.registerHandlers()
	return bot, nil
}

// Telebot returns the underlying bot instance for the notification service
func (b *Bot) Telebot() *telebot.Bot {
	return b.bot
}

// Start begins polling. Blocks until Stop is called.
func (b *Bot) Start() {
	slog.Info("telegram bot started")
	b.bot.Start()
}

// Stop terminates polling
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleHelp)
}

// handleStart upserts the sender and opens the Mini App. A deep-link payload
// like "challenge_42" or "invite_<code>" is forwarded so the app lands on
// the right screen.
func (b *Bot) handleStart(c telebot.Context) error {
	sender := c.Sender()

	user, err := b.repo.UpsertUser(context.Background(), &models.User{
		TelegramID: sender.ID,
		Username:   sender.Username,
		FirstName:  sender.FirstName,
		LastName:   sender.LastName,
	})
	if err != nil {
		slog.Error("failed to upsert user from /start", "error", err, "telegram_id", sender.ID)
		return c.Send("Something went wrong. Please try again.")
	}

	url := b.webAppURL
	if payload := c.Message().Payload; payload != "" {
		param, perr := nav.ParseStartParam(payload)
		if perr != nil {
			slog.Warn("invalid start payload", "error", perr, "telegram_id", sender.ID)
		} else if param != nil {
			url = fmt.Sprintf("%s?tgWebAppStartParam=%s", b.webAppURL, payload)
			slog.Info("deep link resolved",
				"telegram_id", sender.ID,
				"challenge_id", param.ChallengeID,
				"invite_code", param.InviteCode,
			)
		}
	}

	btn := telebot.InlineButton{
		Text:   "🔥 Open Challenges",
		WebApp: &telebot.WebApp{URL: url},
	}

	welcome := fmt.Sprintf("Hi, %s! 👋\n\nCreate challenges, join others and track your daily progress. Tap the button below to start:",
		user.DisplayName())
	return c.Send(welcome, &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{btn}},
	})
}

func (b *Bot) handleHelp(c telebot.Context) error {
	helpText := "📚 Available commands\n\n" +
		"/start - Open the challenges app\n" +
		"/help - Show this help message\n\n" +
		"Everything else happens inside the Mini App: creating challenges, joining, daily reports and ratings."
	return c.Send(helpText)
}
