package send

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/subscribers"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 2 * time.Second
)

// Tally is the outcome of a send run.
type Tally struct {
	Sent   int
	Failed int
}

// Sender iterates subscribers in fixed-size batches with a delay between
// batches. A failed recipient is counted and never stops the run.
type Sender struct {
	provider   Provider
	batchSize  int
	batchDelay time.Duration
	log        zerolog.Logger

	// sleep is swapped in tests to count inter-batch delays.
	sleep func(time.Duration)
}

// New builds a Sender with the provider's throughput defaults.
func New(provider Provider, log zerolog.Logger) *Sender {
	return &Sender{
		provider:   provider,
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
		log:        log,
		sleep:      time.Sleep,
	}
}

// SendAll attempts one send per subscriber. With N subscribers and batch
// size B it issues exactly ceil(N/B)-1 inter-batch delays, regardless of
// per-send failures.
func (s *Sender) SendAll(ctx context.Context, subs []subscribers.Subscriber, subject, html string) Tally {
	var tally Tally

	for start := 0; start < len(subs); start += s.batchSize {
		if start > 0 {
			s.sleep(s.batchDelay)
		}

		end := start + s.batchSize
		if end > len(subs) {
			end = len(subs)
		}
		batch := subs[start:end]
		s.log.Info().Int("batch", start/s.batchSize+1).Int("size", len(batch)).Msg("sending batch")

		for _, sub := range batch {
			if err := s.provider.Send(ctx, sub.Email, subject, html); err != nil {
				tally.Failed++
				s.log.Error().Str("recipient", sub.Email).Err(err).Msg("send failed")
				continue
			}
			tally.Sent++
		}
	}

	s.log.Info().Int("sent", tally.Sent).Int("failed", tally.Failed).Msg("send run complete")
	return tally
}
