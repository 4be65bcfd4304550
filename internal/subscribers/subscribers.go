// Package subscribers pulls the newsletter list out of the site's form
// submissions API.
package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/config"
)

const defaultBaseURL = "https://api.netlify.com"

// Subscriber is one signup record.
type Subscriber struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	SubscribedAt string `json:"subscribedAt"`
}

// Client pages through a named form's submissions.
type Client struct {
	token    string
	siteID   string
	formName string

	// baseURL and perPage are fixed in production; tests override them.
	baseURL string
	perPage int

	http *http.Client
	log  zerolog.Logger
}

// NewClient validates credentials before any network call is possible.
func NewClient(env *config.Env, formName string, log zerolog.Logger) (*Client, error) {
	if err := env.RequireSubscribers(); err != nil {
		return nil, err
	}
	return &Client{
		token:    env.NetlifyAccessToken,
		siteID:   env.NetlifySiteID,
		formName: formName,
		baseURL:  defaultBaseURL,
		perPage:  100,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

type form struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type submission struct {
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

// Subscribers returns every mapped signup, in API order. Records without
// a plausible email are dropped. Deduplication is a separate step.
func (c *Client) Subscribers(ctx context.Context) ([]Subscriber, error) {
	formID, err := c.lookupForm(ctx)
	if err != nil {
		return nil, err
	}

	var subs []Subscriber
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, formID, page)
		if err != nil {
			return nil, err
		}
		for _, s := range batch {
			if sub, ok := mapSubmission(s); ok {
				subs = append(subs, sub)
			}
		}
		// A short page means we have reached the end.
		if len(batch) < c.perPage {
			break
		}
	}

	c.log.Info().Int("count", len(subs)).Str("form", c.formName).Msg("subscribers fetched")
	return subs, nil
}

func (c *Client) lookupForm(ctx context.Context) (string, error) {
	var forms []form
	endpoint := fmt.Sprintf("%s/api/v1/sites/%s/forms", c.baseURL, url.PathEscape(c.siteID))
	if err := c.getJSON(ctx, endpoint, &forms); err != nil {
		return "", fmt.Errorf("listing forms: %w", err)
	}
	for _, f := range forms {
		if strings.EqualFold(f.Name, c.formName) {
			return f.ID, nil
		}
	}
	return "", fmt.Errorf("form %q not found on site %s", c.formName, c.siteID)
}

func (c *Client) fetchPage(ctx context.Context, formID string, page int) ([]submission, error) {
	endpoint := fmt.Sprintf("%s/api/v1/forms/%s/submissions?per_page=%d&page=%d",
		c.baseURL, url.PathEscape(formID), c.perPage, page)
	var batch []submission
	if err := c.getJSON(ctx, endpoint, &batch); err != nil {
		return nil, fmt.Errorf("fetching submissions page %d: %w", page, err)
	}
	return batch, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mapSubmission accepts both field-name casings the form has used over
// time and rejects records without an "@" in the email.
func mapSubmission(s submission) (Subscriber, bool) {
	email := stringField(s.Data, "email", "Email")
	if !strings.Contains(email, "@") {
		return Subscriber{}, false
	}
	return Subscriber{
		Name:         stringField(s.Data, "name", "Name"),
		Email:        email,
		SubscribedAt: s.CreatedAt,
	}, true
}

func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			switch t := v.(type) {
			case string:
				return strings.TrimSpace(t)
			case float64:
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		}
	}
	return ""
}

// Deduplicate keeps the first occurrence of each email, compared
// lower-cased and trimmed. Applying it twice changes nothing.
func Deduplicate(subs []Subscriber) []Subscriber {
	seen := make(map[string]bool, len(subs))
	out := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		key := strings.ToLower(strings.TrimSpace(s.Email))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
