package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/telebot.v3"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// UserLookup resolves internal user ids to their Telegram ids
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Service sends Telegram notifications for entry workflow events and
// publishes new challenges to the public channel. Delivery is best effort;
// failures are logged and never propagate into the workflow that fired them.
type Service struct {
	bot       *telebot.Bot
	mu        sync.Mutex
	users     UserLookup
	channelID string
	botName   string
}

// NewService creates the notification service on an existing bot instance
func NewService(bot *telebot.Bot, users UserLookup, channelID, botName string) *Service {
	return &Service{bot: bot, users: users, channelID: channelID, botName: botName}
}

// EntryRequested notifies the challenge creator that a new request is waiting
func (s *Service) EntryRequested(ctx context.Context, c *models.Challenge, req *models.EntryRequest) {
	user, err := s.users.GetUserByID(ctx, c.CreatorID)
	if err != nil || user == nil {
		slog.Warn("failed to resolve creator for request notification", "error", err, "challenge_id", c.ID)
		return
	}

	message := fmt.Sprintf("📥 New entry request for \"%s\".\n\nOpen the app to review it.",
		truncate(c.Title, 60))
	s.send(&telebot.User{ID: user.TelegramID}, message)
}

// RequestApproved notifies the requester that they are in
func (s *Service) RequestApproved(ctx context.Context, c *models.Challenge, userID int64) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("failed to resolve user for approval notification", "error", err, "user_id", userID)
		return
	}

	message := fmt.Sprintf("✅ You are in! Your request to join \"%s\" was approved.\n\nThe challenge runs for %d days. Good luck!",
		truncate(c.Title, 60), c.DurationDays)
	s.send(&telebot.User{ID: user.TelegramID}, message)
}

// RequestRejected notifies the requester about the decline
func (s *Service) RequestRejected(ctx context.Context, c *models.Challenge, userID int64) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("failed to resolve user for rejection notification", "error", err, "user_id", userID)
		return
	}

	message := fmt.Sprintf("❌ Your request to join \"%s\" was declined by the creator.",
		truncate(c.Title, 60))
	s.send(&telebot.User{ID: user.TelegramID}, message)
}

// ChallengePublished announces a fresh challenge on the public channel.
// Skipped silently when no channel is configured.
func (s *Service) ChallengePublished(ctx context.Context, c *models.Challenge, creatorName string) {
	if s.channelID == "" {
		return
	}

	entryLine := "🆓 Free entry"
	switch c.EntryType {
	case models.EntryPaid:
		if c.EntryPrice != nil {
			entryLine = fmt.Sprintf("💳 Entry: %s %s", c.EntryPrice.String(), c.EntryCurrency)
		} else {
			entryLine = "💳 Paid entry"
		}
	case models.EntryCondition:
		entryLine = "🎟 Entry by condition"
	}

	message := fmt.Sprintf("🆕 New challenge: %s\n\n%s\n👤 Creator: %s\n📅 Duration: %d days",
		truncate(c.Title, 80), entryLine, creatorName, c.DurationDays)

	if s.botName != "" {
		message += fmt.Sprintf("\n\nJoin: https://t.me/%s?startapp=challenge_%d", s.botName, c.ID)
	}

	s.send(s.channelRecipient(), message)
}

func (s *Service) send(to telebot.Recipient, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.bot.Send(to, message); err != nil {
		slog.Warn("failed to send telegram notification", "error", err, "recipient", to.Recipient())
	}
}

func (s *Service) channelRecipient() telebot.Recipient {
	if strings.HasPrefix(s.channelID, "@") {
		return &telebot.Chat{Username: s.channelID}
	}
	id, _ := strconv.ParseInt(s.channelID, 10, 64)
	return &telebot.Chat{ID: id}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen-3]) + "..."
}
