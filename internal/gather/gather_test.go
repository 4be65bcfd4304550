package gather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/config"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>
<item>
  <title>Revival Breaks Out After Campus Prayer Meeting</title>
  <link>https://example.com/revival</link>
  <description>&lt;p&gt;Students report an awakening marked by worship, repentance and baptism.&lt;/p&gt;</description>
  <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Church Planting Network Reaches Unreached Region</title>
  <link>https://example.com/missions</link>
  <description>New missionary teams carry the gospel to villages with no church.</description>
</item>
<item>
  <title>Local Sports Roundup</title>
  <link>https://example.com/sports</link>
  <description>Scores and highlights from the weekend.</description>
</item>
</channel></rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Atom Feed</title>
<entry>
  <title>Pastors Imprisoned As Persecution Intensifies</title>
  <link href="https://example.com/persecution"/>
  <summary>Three pastors were imprisoned this week; the underground church continues to meet.</summary>
  <updated>2025-06-01T08:00:00Z</updated>
</entry>
</feed>`

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func serveXML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serveError(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatherSurvivesPartialFeedFailure(t *testing.T) {
	good := serveXML(t, rssFixture)
	bad := serveError(t)

	g := New([]config.Feed{
		{Name: "good", URL: good.URL, Category: "general"},
		{Name: "bad", URL: bad.URL, Category: "general"},
	}, testLogger())

	content := g.Gather(context.Background(), 6, 2025)
	if content.IsFallback {
		t.Fatal("expected live content when one feed succeeds")
	}
	if len(content.TopStories) == 0 {
		t.Fatal("expected top stories from the surviving feed")
	}
}

func TestGatherFallbackWhenAllFeedsFail(t *testing.T) {
	bad1 := serveError(t)
	bad2 := serveError(t)

	g := New([]config.Feed{
		{Name: "bad1", URL: bad1.URL, Category: "general"},
		{Name: "bad2", URL: bad2.URL, Category: "general"},
	}, testLogger())

	content := g.Gather(context.Background(), 12, 2025)
	if !content.IsFallback {
		t.Fatal("expected fallback content when every feed fails")
	}
	if content.MonthlyTheme.Theme != "The King Has Come" {
		t.Errorf("December fallback theme = %q, want %q", content.MonthlyTheme.Theme, "The King Has Come")
	}
}

func TestGatherParsesAtom(t *testing.T) {
	srv := serveXML(t, atomFixture)

	g := New([]config.Feed{{Name: "atom", URL: srv.URL, Category: "persecution"}}, testLogger())
	content := g.Gather(context.Background(), 6, 2025)

	if content.IsFallback {
		t.Fatal("expected live content from atom feed")
	}
	if len(content.PersecutionUpdates) != 1 {
		t.Fatalf("persecution bucket = %d articles, want 1", len(content.PersecutionUpdates))
	}
	if got := content.PersecutionUpdates[0].Source; got != "atom" {
		t.Errorf("source = %q, want %q", got, "atom")
	}
}

func TestGatherDiscardsIrrelevantArticles(t *testing.T) {
	srv := serveXML(t, rssFixture)

	g := New([]config.Feed{{Name: "feed", URL: srv.URL, Category: "general"}}, testLogger())
	content := g.Gather(context.Background(), 6, 2025)

	for _, a := range content.TopStories {
		if strings.Contains(a.Title, "Sports") {
			t.Errorf("zero-score article survived filtering: %q", a.Title)
		}
	}
}

func TestRelevanceScoreCountsDistinctKeywords(t *testing.T) {
	a := Article{
		Title:       "Kingdom kingdom KINGDOM",
		Description: "kingdom kingdom",
	}
	if got := relevanceScore(a); got != 1 {
		t.Errorf("repeated keyword score = %d, want 1", got)
	}

	b := Article{
		Title:       "Prayer and worship",
		Description: "A church gathered in faith",
	}
	if got := relevanceScore(b); got != 4 {
		t.Errorf("distinct keyword score = %d, want 4 (prayer, worship, church, faith)", got)
	}
}

func TestScoreAndFilterStableOnTies(t *testing.T) {
	articles := []Article{
		{Title: "prayer first", Description: ""},
		{Title: "worship second", Description: ""},
		{Title: "faith third", Description: ""},
	}
	got := scoreAndFilter(articles)
	if len(got) != 3 {
		t.Fatalf("filtered length = %d, want 3", len(got))
	}
	for i, want := range []string{"prayer first", "worship second", "faith third"} {
		if got[i].Title != want {
			t.Errorf("position %d = %q, want %q (ties must keep original order)", i, got[i].Title, want)
		}
	}
}

func TestBucketCapsAtThree(t *testing.T) {
	var sorted []Article
	for i := 0; i < 5; i++ {
		sorted = append(sorted, Article{Title: fmt.Sprintf("revival story %d", i)})
	}
	got := bucket(sorted, revivalPattern)
	if len(got) != 3 {
		t.Errorf("bucket size = %d, want 3", len(got))
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Hello <b>world</b></p>\n\n  extra")
	if got != "Hello world extra" {
		t.Errorf("stripHTML = %q, want %q", got, "Hello world extra")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := truncate(long, 300)
	if len([]rune(got)) != 300 {
		t.Errorf("truncated length = %d, want 300", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated text should end with ellipsis")
	}
	if truncate("short", 300) != "short" {
		t.Error("short text must pass through unchanged")
	}
}
