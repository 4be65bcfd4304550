// Package config holds process configuration: credentials from the
// environment and ministry identity from an optional YAML file. Both are
// loaded once at startup and passed explicitly into each component.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Env carries every credential and tunable read from the environment.
// A zero value for an optional field means the matching feature is
// skipped; required fields are checked per operation, not globally, so
// the sender does not demand the notifier's tokens.
type Env struct {
	AppEnv string `envconfig:"APP_ENV" default:"prod"`

	GroqAPIKey string `envconfig:"GROQ_API_KEY"`
	GroqModel  string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`

	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	FromAddress  string `envconfig:"NEWSLETTER_FROM" default:"Kingdom Embassy <newsletter@kingdomembassy.org>"`
	ReplyTo      string `envconfig:"NEWSLETTER_REPLY_TO" default:"pastor@kingdomembassy.org"`

	NetlifyAccessToken string `envconfig:"NETLIFY_ACCESS_TOKEN"`
	NetlifySiteID      string `envconfig:"NETLIFY_SITE_ID"`

	NtfyServer string `envconfig:"NTFY_SERVER" default:"https://ntfy.sh"`
	NtfyTopic  string `envconfig:"NTFY_TOPIC"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`

	DiscordBotToken  string `envconfig:"DISCORD_BOT_TOKEN"`
	DiscordChannelID string `envconfig:"DISCORD_CHANNEL_ID"`

	// AlertRecipients is the static live-alert email list, comma separated.
	AlertRecipients []string `envconfig:"ALERT_EMAILS"`

	OutputDir string `envconfig:"NEWSLETTER_OUTPUT_DIR" default:"content/newsletters"`
}

// LoadEnv reads .env if present, then the process environment.
func LoadEnv() (*Env, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	return &env, nil
}

// RequireGeneration fails fast when the completion API cannot be called.
func (e *Env) RequireGeneration() error {
	if e.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required for newsletter generation")
	}
	return nil
}

// RequireSending fails fast when the email-delivery API cannot be called.
func (e *Env) RequireSending() error {
	if e.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required for sending email")
	}
	return nil
}

// RequireSubscribers fails fast when the forms API cannot be called.
func (e *Env) RequireSubscribers() error {
	if e.NetlifyAccessToken == "" {
		return fmt.Errorf("NETLIFY_ACCESS_TOKEN is required to fetch subscribers")
	}
	if e.NetlifySiteID == "" {
		return fmt.Errorf("NETLIFY_SITE_ID is required to fetch subscribers")
	}
	return nil
}

// Feed is one configured RSS/Atom source.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// Ministry is the fixed identity the generator writes from.
type Ministry struct {
	Name         string `yaml:"name"`
	Tagline      string `yaml:"tagline"`
	Website      string `yaml:"website"`
	City         string `yaml:"city"`
	ServiceTimes string `yaml:"service_times"`
	SignupForm   string `yaml:"signup_form"`
	Feeds        []Feed `yaml:"feeds"`
}

// DefaultMinistry returns the built-in identity and feed list, used when
// no ministry.yaml override is present.
func DefaultMinistry() *Ministry {
	return &Ministry{
		Name:         "Kingdom Embassy",
		Tagline:      "Advancing the Kingdom of God in every sphere of life",
		Website:      "https://kingdomembassy.org",
		City:         "Houston, TX",
		ServiceTimes: "Sundays 10:00 AM, Wednesdays 7:00 PM",
		SignupForm:   "newsletter-signup",
		Feeds: []Feed{
			{Name: "Christianity Today", URL: "https://www.christianitytoday.com/rss", Category: "general"},
			{Name: "Christian Post", URL: "https://www.christianpost.com/rss", Category: "general"},
			{Name: "Mission Network News", URL: "https://www.mnnonline.org/feed/", Category: "missions"},
			{Name: "Open Doors", URL: "https://www.opendoors.org/en-US/feed/", Category: "persecution"},
			{Name: "Relevant Magazine", URL: "https://relevantmagazine.com/feed/", Category: "culture"},
		},
	}
}

// LoadMinistry reads the YAML identity file, falling back to the built-in
// defaults when path is empty or the file does not exist.
func LoadMinistry(path string) (*Ministry, error) {
	if path == "" {
		return DefaultMinistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultMinistry(), nil
		}
		return nil, fmt.Errorf("reading ministry config: %w", err)
	}

	var m Ministry
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing ministry config %s: %w", path, err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Ministry) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("ministry config: name is required")
	}
	for i, f := range m.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", f.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f.Name, u.Scheme)
		}
	}
	return nil
}
