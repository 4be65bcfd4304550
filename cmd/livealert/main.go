// Command livealert fans a "live now" message out to the configured
// notification channels.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/logging"
	"github.com/kingdomembassy/newsletter/internal/notify"
	"github.com/kingdomembassy/newsletter/internal/send"
)

func main() {
	message := flag.String("message", "", "alert text (required)")
	platform := flag.String("platform", notify.PlatformAll, "channel to use: all, ntfy, telegram, discord or email")
	test := flag.Bool("test", false, "mark the message as a test")
	ministryPath := flag.String("ministry", "", "path to ministry.yaml (built-in defaults when empty)")
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(env.AppEnv)

	if *message == "" {
		log.Error().Msg("--message is required")
		os.Exit(1)
	}
	if !validPlatform(*platform) {
		log.Error().Str("platform", *platform).Strs("valid", notify.Platforms).Msg("unknown platform")
		os.Exit(1)
	}

	ministry, err := config.LoadMinistry(*ministryPath)
	if err != nil {
		log.Error().Err(err).Msg("invalid ministry config")
		os.Exit(1)
	}

	text := *message
	if *test {
		text = "[TEST] " + text
	}

	var email send.Provider
	if env.ResendAPIKey != "" {
		email = send.NewResendProvider(env.ResendAPIKey, env.FromAddress, env.ReplyTo, log)
	}

	notifier := notify.New(env, ministry.Website+"/live", email, log)
	result := notifier.Notify(context.Background(), text, *platform)

	ok := false
	for channel, delivered := range result {
		log.Info().Str("channel", channel).Bool("delivered", delivered).Msg("channel result")
		if delivered {
			ok = true
		}
	}
	if !ok {
		os.Exit(1)
	}
}

func validPlatform(p string) bool {
	for _, v := range notify.Platforms {
		if p == v {
			return true
		}
	}
	return false
}
