// Package gather fetches the configured news feeds, keeps the articles
// relevant to the ministry's beat, and buckets them into the topical
// groups the newsletter sections draw from.
package gather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/config"
)

const (
	fetchTimeout    = 10 * time.Second
	maxItemsPerFeed = 5
	maxDescription  = 300
	topStoryCount   = 6
	bucketCap       = 3
	maxFeedBytes    = 4 << 20
	userAgent       = "KingdomEmbassyNewsletter/1.0"
)

// Article is one feed item after stripping and scoring.
type Article struct {
	Title          string    `json:"title"`
	Link           string    `json:"link"`
	Description    string    `json:"description"`
	PublishedAt    time.Time `json:"publishedAt"`
	Category       string    `json:"category"`
	Source         string    `json:"source"`
	RelevanceScore int       `json:"relevanceScore"`
}

// Theme is the editorial focus assigned to a calendar month.
type Theme struct {
	Theme string `json:"theme"`
	Focus string `json:"focus"`
}

// Content is the gathered input handed to the section generator.
type Content struct {
	TopStories         []Article `json:"topStories"`
	MissionNews        []Article `json:"missionNews"`
	PersecutionUpdates []Article `json:"persecutionUpdates"`
	RevivalReports     []Article `json:"revivalReports"`
	CultureInfluence   []Article `json:"cultureInfluence"`
	MonthlyTheme       Theme     `json:"monthlyTheme"`
	IsFallback         bool      `json:"isFallback"`
}

// relevanceKeywords is the fixed ministry vocabulary an article must touch
// to survive filtering. Scoring counts distinct matches, not occurrences.
var relevanceKeywords = []string{
	"jesus", "christ", "gospel", "church", "ministry", "faith", "prayer",
	"worship", "bible", "scripture", "kingdom", "revival", "awakening",
	"missionary", "missions", "evangelism", "discipleship", "persecution",
	"martyr", "baptism", "salvation", "holy spirit", "pastor",
	"congregation", "christian", "theology", "testimony", "miracle",
	"healing", "repentance", "grace",
}

var (
	missionPattern     = regexp.MustCompile(`(?i)mission|plant|evangel|unreached`)
	persecutionPattern = regexp.MustCompile(`(?i)persecut|martyr|imprison|underground`)
	revivalPattern     = regexp.MustCompile(`(?i)revival|awaken|movement|growth|bapti`)
	culturePattern     = regexp.MustCompile(`(?i)culture|societ|education|government|business|art|media|transform`)
)

// Parser abstracts gofeed so tests can feed fixture XML.
type Parser interface {
	ParseString(data string) (*gofeed.Feed, error)
}

// Gatherer fetches and filters the configured feeds.
type Gatherer struct {
	feeds  []config.Feed
	parser Parser
	client *http.Client
	log    zerolog.Logger
}

// New builds a Gatherer over the given feed list.
func New(feeds []config.Feed, log zerolog.Logger) *Gatherer {
	return &Gatherer{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

type fetchResult struct {
	feed     config.Feed
	articles []Article
	err      error
}

// Gather fetches every feed concurrently, scores and buckets the results.
// Individual feed failures are logged and ignored; only when every feed
// yields nothing does the month's curated fallback dataset take over.
func (g *Gatherer) Gather(ctx context.Context, month, year int) Content {
	results := make(chan fetchResult, len(g.feeds))
	for _, feed := range g.feeds {
		go func(f config.Feed) {
			articles, err := g.fetchFeed(ctx, f)
			results <- fetchResult{feed: f, articles: articles, err: err}
		}(feed)
	}

	var all []Article
	for range g.feeds {
		res := <-results
		if res.err != nil {
			g.log.Warn().Str("feed", res.feed.Name).Err(res.err).Msg("feed fetch failed")
			continue
		}
		g.log.Debug().Str("feed", res.feed.Name).Int("items", len(res.articles)).Msg("feed fetched")
		all = append(all, res.articles...)
	}

	theme := ThemeForMonth(month)

	if len(all) == 0 {
		g.log.Warn().Int("month", month).Int("year", year).Msg("no live articles, using fallback content")
		return fallbackContent(month)
	}

	relevant := scoreAndFilter(all)
	g.log.Info().Int("fetched", len(all)).Int("relevant", len(relevant)).Msg("articles gathered")

	return Content{
		TopStories:         capped(relevant, topStoryCount),
		MissionNews:        bucket(relevant, missionPattern),
		PersecutionUpdates: bucket(relevant, persecutionPattern),
		RevivalReports:     bucket(relevant, revivalPattern),
		CultureInfluence:   bucket(relevant, culturePattern),
		MonthlyTheme:       theme,
	}
}

// fetchFeed retrieves and parses a single feed with its own timeout.
func (g *Gatherer) fetchFeed(ctx context.Context, feed config.Feed) ([]Article, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// gofeed detects RSS first and falls through to Atom, which covers
	// feeds that serve <entry> under an RSS content type.
	parsed, err := g.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	articles := make([]Article, 0, maxItemsPerFeed)
	for _, item := range parsed.Items {
		if len(articles) >= maxItemsPerFeed {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		published := time.Time{}
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		articles = append(articles, Article{
			Title:       stripHTML(item.Title),
			Link:        item.Link,
			Description: truncate(stripHTML(desc), maxDescription),
			PublishedAt: published,
			Category:    feed.Category,
			Source:      feed.Name,
		})
	}
	return articles, nil
}

// scoreAndFilter assigns each article its distinct-keyword score, drops
// zero-score articles and sorts the rest by score, preserving the
// original order among ties.
func scoreAndFilter(articles []Article) []Article {
	var relevant []Article
	for _, a := range articles {
		a.RelevanceScore = relevanceScore(a)
		if a.RelevanceScore > 0 {
			relevant = append(relevant, a)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})
	return relevant
}

// relevanceScore counts how many distinct keywords appear in the
// article's title and description. Repeating a keyword does not raise
// the score.
func relevanceScore(a Article) int {
	text := strings.ToLower(a.Title + " " + a.Description)
	score := 0
	for _, kw := range relevanceKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}

func bucket(sorted []Article, pattern *regexp.Regexp) []Article {
	var out []Article
	for _, a := range sorted {
		if len(out) >= bucketCap {
			break
		}
		if pattern.MatchString(a.Title + " " + a.Description) {
			out = append(out, a)
		}
	}
	return out
}

func capped(articles []Article, n int) []Article {
	if len(articles) > n {
		return articles[:n]
	}
	return articles
}

// stripHTML reduces markup to plain text and collapses whitespace.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
