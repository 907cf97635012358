package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vigil/config"
	"vigil/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramService pushes alert notifications to the operator chat, throttled
// per status so a persistent condition does not flood the channel.
type TelegramService struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	config         *config.Config
	lastAlertTimes map[string]time.Time // last alert time per status
	logger         *zap.Logger
}

func NewTelegramService(cfg *config.Config, logger *zap.Logger) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing chat ID: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	ts := &TelegramService{
		bot:            bot,
		chatID:         chatID,
		config:         cfg,
		lastAlertTimes: make(map[string]time.Time),
		logger:         logger,
	}

	if err := ts.testConnection(); err != nil {
		logger.Error("Telegram connection test failed", zap.Error(err))
		return nil, fmt.Errorf("telegram connection test failed: %w", err)
	}

	return ts, nil
}

// testConnection verifies the bot can reach the API, with retry.
func (ts *TelegramService) testConnection() error {
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ts.logger.Info("Testing Telegram connection",
			zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		_, err := ts.bot.GetMe()
		if err == nil {
			ts.logger.Info("Telegram connection successful")
			return nil
		}

		ts.logger.Warn("Telegram connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Telegram after %d attempts", maxRetries)
}

// SendAlert notifies the operator chat about an active alert decision.
func (ts *TelegramService) SendAlert(decision models.Decision, counts models.AnomalyCounts, deviceID string) error {
	if !decision.AlertActive {
		return nil
	}

	if ts.shouldThrottle(decision.Status) {
		ts.logger.Debug("Throttling alert",
			zap.String("device_id", deviceID),
			zap.String("status", decision.Status))
		return nil
	}

	message := ts.formatAlertMessage(decision, counts, deviceID)

	msg := tgbotapi.NewMessage(ts.chatID, message)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := ts.bot.Send(msg); err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}

	ts.lastAlertTimes[decision.Status] = time.Now()
	return nil
}

// shouldThrottle reports whether this status alerted too recently.
func (ts *TelegramService) shouldThrottle(status string) bool {
	last, ok := ts.lastAlertTimes[status]
	if !ok {
		return false
	}
	throttle := time.Duration(ts.config.AlertThrottleSeconds) * time.Second
	return time.Since(last) < throttle
}

// formatAlertMessage builds the HTML alert body.
func (ts *TelegramService) formatAlertMessage(decision models.Decision, counts models.AnomalyCounts, deviceID string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s <b>VIGIL ALERT: %s</b>\n\n", decision.Emoji(), decision.Status))
	sb.WriteString(fmt.Sprintf("📟 Device: <code>%s</code>\n", deviceID))
	sb.WriteString(fmt.Sprintf("🎯 Confidence: <b>%.2f</b>\n\n", decision.Confidence))
	sb.WriteString("Window anomaly counts:\n")
	sb.WriteString(fmt.Sprintf("  • Sound: %d\n", counts.Sound))
	sb.WriteString(fmt.Sprintf("  • Vibration: %d\n", counts.Vibration))
	sb.WriteString(fmt.Sprintf("  • Flame: %d\n", counts.Flame))
	sb.WriteString(fmt.Sprintf("  • Motion: %d\n\n", counts.Motion))
	sb.WriteString(fmt.Sprintf("🕐 %s", time.Now().Format("2006-01-02 15:04:05")))

	return sb.String()
}

// SendStartupMessage announces that the node came online.
func (ts *TelegramService) SendStartupMessage() error {
	message := fmt.Sprintf(
		"🟢 <b>VIGIL monitoring node online</b>\n\n📟 Device: <code>%s</code>\n🕐 %s",
		ts.config.DeviceID,
		time.Now().Format("2006-01-02 15:04:05"),
	)

	msg := tgbotapi.NewMessage(ts.chatID, message)
	msg.ParseMode = "HTML"

	if _, err := ts.bot.Send(msg); err != nil {
		return fmt.Errorf("error sending startup message: %w", err)
	}

	return nil
}
