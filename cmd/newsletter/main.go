// Command newsletter runs the gather → generate → publish pipeline for
// one monthly issue, on demand or on a cron schedule, and can serve the
// published archive for local preview.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/gather"
	"github.com/kingdomembassy/newsletter/internal/generate"
	"github.com/kingdomembassy/newsletter/internal/logging"
	"github.com/kingdomembassy/newsletter/internal/preview"
	"github.com/kingdomembassy/newsletter/internal/publish"
	"github.com/kingdomembassy/newsletter/internal/send"
)

func main() {
	now := time.Now()
	month := flag.Int("month", int(now.Month()), "issue month (1-12)")
	year := flag.Int("year", now.Year(), "issue year")
	dryRun := flag.Bool("dry-run", false, "gather and log only; no API calls, no files written")
	schedule := flag.String("schedule", "", "cron spec; run the pipeline on this schedule instead of once")
	serve := flag.String("serve", "", "serve the published archive on this address instead of generating")
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

	publisher := publish.New(env.OutputDir, log)

	if *serve != "" {
		var welcome send.Provider
		if env.ResendAPIKey != "" {
			welcome = send.NewResendProvider(env.ResendAPIKey, env.FromAddress, env.ReplyTo, log)
		}
		srv := preview.New(publisher, welcome, log)
		if err := srv.ListenAndServe(*serve); err != nil {
			log.Error().Err(err).Msg("preview server failed")
			os.Exit(1)
		}
		return
	}

	if *month < 1 || *month > 12 {
		log.Error().Int("month", *month).Msg("month must be 1-12")
		os.Exit(1)
	}

	if !*dryRun {
		if err := env.RequireGeneration(); err != nil {
			log.Error().Err(err).Msg("missing configuration")
			os.Exit(1)
		}
	}

	if *schedule != "" {
		runScheduled(*schedule, env, ministry, publisher, log)
		return
	}

	if err := runOnce(env, ministry, publisher, log, *month, *year, *dryRun); err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}
}

// runScheduled blocks, generating an issue for the then-current month on
// every cron tick.
func runScheduled(spec string, env *config.Env, ministry *config.Ministry, publisher *publish.Publisher, log zerolog.Logger) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		now := time.Now()
		if err := runOnce(env, ministry, publisher, log, int(now.Month()), now.Year(), false); err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
		}
	})
	if err != nil {
		log.Error().Str("spec", spec).Err(err).Msg("invalid cron spec")
		os.Exit(1)
	}
	log.Info().Str("spec", spec).Msg("pipeline scheduled")
	c.Run()
}

func runOnce(env *config.Env, ministry *config.Ministry, publisher *publish.Publisher, log zerolog.Logger, month, year int, dryRun bool) error {
	ctx := context.Background()

	log.Info().Int("month", month).Int("year", year).Msg("gathering content")
	gatherer := gather.New(ministry.Feeds, log)
	content := gatherer.Gather(ctx, month, year)
	log.Info().
		Bool("fallback", content.IsFallback).
		Str("theme", content.MonthlyTheme.Theme).
		Int("topStories", len(content.TopStories)).
		Msg("content gathered")

	if dryRun {
		log.Info().Msg("dry run: skipping generation and publish")
		return nil
	}

	generator := generate.New(generate.NewGroqClient(env.GroqAPIKey), env.GroqModel, ministry, log)
	newsletter, err := generator.Generate(ctx, content, month, year)
	if err != nil {
		return err
	}

	result, err := publisher.Publish(newsletter)
	if err != nil {
		return err
	}

	log.Info().
		Str("dateKey", result.DateKey).
		Str("json", result.JSONPath).
		Str("html", result.HTMLPath).
		Str("latest", result.LatestPath).
		Int("archiveEntries", len(result.ArchiveEntries)).
		Msg("issue published")
	return nil
}
