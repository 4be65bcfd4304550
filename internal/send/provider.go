// Package send delivers a rendered newsletter to subscribers in paced
// batches through a pluggable email provider.
package send

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
)

// Provider is the one call the sender needs from a delivery backend.
type Provider interface {
	Send(ctx context.Context, to, subject, html string) error
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendProvider delivers through the Resend HTTP API.
type ResendProvider struct {
	apiKey   string
	from     string
	replyTo  string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewResendProvider builds the production provider.
func NewResendProvider(apiKey, from, replyTo string, log zerolog.Logger) *ResendProvider {
	return &ResendProvider{
		apiKey:   apiKey,
		from:     from,
		replyTo:  replyTo,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one email, retrying transient failures a few times before
// reporting the send as failed.
func (r *ResendProvider) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(resendRequest{
		From:    r.from,
		To:      []string{to},
		ReplyTo: r.replyTo,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+r.apiKey)

			resp, err := r.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn().Uint("attempt", n+1).Str("to", to).Err(err).Msg("email send failed, retrying")
		}),
	)
}

// PreviewProvider writes the rendered email to a local file instead of
// sending, for --preview runs.
type PreviewProvider struct {
	Path string
	log  zerolog.Logger
}

// NewPreviewProvider builds a provider that writes to path.
func NewPreviewProvider(path string, log zerolog.Logger) *PreviewProvider {
	return &PreviewProvider{Path: path, log: log}
}

// Send writes the HTML body to the preview path.
func (p *PreviewProvider) Send(_ context.Context, to, subject, html string) error {
	if err := os.WriteFile(p.Path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing preview: %w", err)
	}
	p.log.Info().Str("to", to).Str("subject", subject).Str("path", p.Path).Msg("preview written instead of sending")
	return nil
}
