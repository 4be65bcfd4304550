// Package notify fans a "live now" message out to independent delivery
// channels. Channels are attempted in isolation: missing configuration
// is a skip, and one channel's failure never prevents the others.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/send"
)

// Platform filter values.
const (
	PlatformAll      = "all"
	PlatformNtfy     = "ntfy"
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
	PlatformEmail    = "email"
)

// Platforms lists the accepted --platform values.
var Platforms = []string{PlatformAll, PlatformNtfy, PlatformTelegram, PlatformDiscord, PlatformEmail}

// Result maps each selected channel to whether delivery succeeded. A
// skipped channel (missing config) appears as false without an attempt.
type Result map[string]bool

// emailSendRate paces the per-recipient alert emails to stay under the
// delivery provider's requests-per-second limit.
var emailSendRate = rate.Every(600 * time.Millisecond)

// Notifier holds the per-channel configuration and transports.
type Notifier struct {
	env      *config.Env
	clickURL string
	email    send.Provider // nil when email delivery is not configured
	http     *http.Client
	limiter  *rate.Limiter
	log      zerolog.Logger

	// Channel transports, replaceable in tests.
	sendTelegram func(token, chatID, message string) error
	sendDiscord  func(token, channelID, message string) error
}

// New builds a Notifier. email may be nil, in which case the email
// channel reports a skip.
func New(env *config.Env, clickURL string, email send.Provider, log zerolog.Logger) *Notifier {
	return &Notifier{
		env:          env,
		clickURL:     clickURL,
		email:        email,
		http:         &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(emailSendRate, 1),
		log:          log,
		sendTelegram: telegramSend,
		sendDiscord:  discordSend,
	}
}

// Notify attempts every channel selected by platform. Only selected
// channels appear in the result.
func (n *Notifier) Notify(ctx context.Context, message, platform string) Result {
	result := Result{}

	if selected(platform, PlatformNtfy) {
		result[PlatformNtfy] = n.notifyNtfy(ctx, message)
	}
	if selected(platform, PlatformTelegram) {
		result[PlatformTelegram] = n.notifyTelegram(message)
	}
	if selected(platform, PlatformDiscord) {
		result[PlatformDiscord] = n.notifyDiscord(message)
	}
	if selected(platform, PlatformEmail) {
		result[PlatformEmail] = n.notifyEmail(ctx, message)
	}

	n.log.Info().Interface("result", result).Msg("notification fan-out complete")
	return result
}

func selected(platform, channel string) bool {
	return platform == PlatformAll || platform == channel
}

// notifyNtfy posts the raw message to {server}/{topic} with the push
// metadata carried in headers, as the ntfy protocol expects.
func (n *Notifier) notifyNtfy(ctx context.Context, message string) bool {
	if n.env.NtfyTopic == "" {
		n.log.Info().Msg("ntfy not configured, skipping")
		return false
	}

	endpoint := strings.TrimRight(n.env.NtfyServer, "/") + "/" + n.env.NtfyTopic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		n.log.Error().Err(err).Msg("ntfy request build failed")
		return false
	}
	req.Header.Set("Title", "We Are LIVE Now")
	req.Header.Set("Tags", "red_circle,church")
	req.Header.Set("Priority", "high")
	req.Header.Set("Click", n.clickURL)
	req.Header.Set("Actions", fmt.Sprintf("view, Watch Now, %s", n.clickURL))

	resp, err := n.http.Do(req)
	if err != nil {
		n.log.Error().Err(err).Msg("ntfy publish failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Error().Int("status", resp.StatusCode).Msg("ntfy publish rejected")
		return false
	}
	n.log.Info().Str("topic", n.env.NtfyTopic).Msg("ntfy alert published")
	return true
}

func (n *Notifier) notifyTelegram(message string) bool {
	if n.env.TelegramBotToken == "" || n.env.TelegramChatID == "" {
		n.log.Info().Msg("telegram not configured, skipping")
		return false
	}
	if err := n.sendTelegram(n.env.TelegramBotToken, n.env.TelegramChatID, message); err != nil {
		n.log.Error().Err(err).Msg("telegram send failed")
		return false
	}
	n.log.Info().Str("chat", n.env.TelegramChatID).Msg("telegram alert sent")
	return true
}

func (n *Notifier) notifyDiscord(message string) bool {
	if n.env.DiscordBotToken == "" || n.env.DiscordChannelID == "" {
		n.log.Info().Msg("discord not configured, skipping")
		return false
	}
	if err := n.sendDiscord(n.env.DiscordBotToken, n.env.DiscordChannelID, message); err != nil {
		n.log.Error().Err(err).Msg("discord send failed")
		return false
	}
	n.log.Info().Str("channel", n.env.DiscordChannelID).Msg("discord alert sent")
	return true
}

// notifyEmail sends the alert to the static recipient list, pacing each
// send through the rate limiter. The list is intentionally not
// deduplicated or paginated.
func (n *Notifier) notifyEmail(ctx context.Context, message string) bool {
	if n.email == nil || len(n.env.AlertRecipients) == 0 {
		n.log.Info().Msg("email alerts not configured, skipping")
		return false
	}

	html := alertHTML(message, n.clickURL)
	sent := 0
	for _, to := range n.env.AlertRecipients {
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.Error().Err(err).Msg("email alert pacing interrupted")
			break
		}
		if err := n.email.Send(ctx, to, "We Are LIVE Now", html); err != nil {
			n.log.Error().Str("recipient", to).Err(err).Msg("email alert failed")
			continue
		}
		sent++
	}
	n.log.Info().Int("sent", sent).Int("recipients", len(n.env.AlertRecipients)).Msg("email alerts done")
	return sent > 0
}

func alertHTML(message, clickURL string) string {
	return fmt.Sprintf(`<div style="font-family:Georgia,serif;max-width:600px;margin:0 auto">
<h2 style="color:#1a2744">&#128308; We Are LIVE Now</h2>
<p>%s</p>
<p><a href="%s" style="background:#b8860b;color:#fff;padding:10px 18px;text-decoration:none">Watch Now</a></p>
</div>`, message, clickURL)
}

// telegramSend posts through the Bot API, accepting either a numeric
// chat ID or an @channel username.
func telegramSend(token, chatID, message string) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram auth: %w", err)
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, message)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatID, err)
		}
		msg = tgbotapi.NewMessage(id, message)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// discordSend posts to the staff channel over plain REST; no gateway
// connection is opened for a single message.
func discordSend(token, channelID, message string) error {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	if _, err := session.ChannelMessageSend(channelID, message); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
