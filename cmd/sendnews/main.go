// Command sendnews delivers the most recently published issue to the
// subscriber list, in paced batches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/generate"
	"github.com/kingdomembassy/newsletter/internal/logging"
	"github.com/kingdomembassy/newsletter/internal/publish"
	"github.com/kingdomembassy/newsletter/internal/send"
	"github.com/kingdomembassy/newsletter/internal/subscribers"
)

func main() {
	testAddr := flag.String("test", "", "send only to this address")
	previewRun := flag.Bool("preview", false, "write the email to newsletter-preview.html instead of sending")
	subject := flag.String("subject", "", "override the email subject")
	ministryPath := flag.String("ministry", "", "path to ministry.yaml (built-in defaults when empty)")
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(env.AppEnv)

	ministry, err := config.LoadMinistry(*ministryPath)
	if err != nil {
		log.Error().Err(err).Msg("invalid ministry config")
		os.Exit(1)
	}

	html, meta, err := loadLatest(env.OutputDir)
	if err != nil {
		log.Error().Err(err).Msg("no published issue to send")
		os.Exit(1)
	}
	if *subject == "" {
		*subject = fmt.Sprintf("%s — %s", meta.Title, meta.DateString)
	}

	var provider send.Provider
	if *previewRun {
		provider = send.NewPreviewProvider("newsletter-preview.html", log)
	} else {
		if err := env.RequireSending(); err != nil {
			log.Error().Err(err).Msg("missing configuration")
			os.Exit(1)
		}
		provider = send.NewResendProvider(env.ResendAPIKey, env.FromAddress, env.ReplyTo, log)
	}

	var subs []subscribers.Subscriber
	if *testAddr != "" {
		subs = []subscribers.Subscriber{{Name: "Test", Email: *testAddr}}
	} else {
		client, err := subscribers.NewClient(env, ministry.SignupForm, log)
		if err != nil {
			log.Error().Err(err).Msg("missing configuration")
			os.Exit(1)
		}
		fetched, err := client.Subscribers(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("fetching subscribers failed")
			os.Exit(1)
		}
		subs = subscribers.Deduplicate(fetched)
		log.Info().Int("fetched", len(fetched)).Int("unique", len(subs)).Msg("subscriber list ready")
	}

	tally := send.New(provider, log).SendAll(context.Background(), subs, *subject, html)
	log.Info().Int("sent", tally.Sent).Int("failed", tally.Failed).Msg("done")
	if tally.Sent == 0 && tally.Failed > 0 {
		os.Exit(1)
	}
}

// loadLatest reads latest.json for metadata and the matching HTML
// artifact for the body.
func loadLatest(dir string) (html string, meta generate.Metadata, err error) {
	data, err := os.ReadFile(filepath.Join(dir, "latest.json"))
	if err != nil {
		return "", meta, fmt.Errorf("reading latest.json: %w", err)
	}
	var n generate.Newsletter
	if err := json.Unmarshal(data, &n); err != nil {
		return "", meta, fmt.Errorf("parsing latest.json: %w", err)
	}

	dateKey := fmt.Sprintf("%04d-%02d", n.Metadata.Year, n.Metadata.Month)
	body, err := os.ReadFile(filepath.Join(dir, dateKey+".html"))
	if err != nil {
		// Render from the JSON if the HTML artifact is missing.
		rendered, rerr := publish.Render(&n)
		if rerr != nil {
			return "", meta, fmt.Errorf("reading %s.html: %w", dateKey, err)
		}
		return rendered, n.Metadata, nil
	}
	return string(body), n.Metadata, nil
}
