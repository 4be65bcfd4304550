package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/config"
)

func testEnv() *config.Env {
	return &config.Env{
		NetlifyAccessToken: "token",
		NetlifySiteID:      "site-123",
	}
}

func TestNewClientFailsFastWithoutCredentials(t *testing.T) {
	if _, err := NewClient(&config.Env{NetlifySiteID: "site"}, "newsletter-signup", zerolog.Nop()); err == nil {
		t.Error("expected error without access token")
	}
	if _, err := NewClient(&config.Env{NetlifyAccessToken: "tok"}, "newsletter-signup", zerolog.Nop()); err == nil {
		t.Error("expected error without site ID")
	}
}

// formsServer serves a forms list and paginated submissions for it.
func formsServer(t *testing.T, pages [][]map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sites/site-123/forms", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "form-contact", "name": "contact"},
			{"id": "form-news", "name": "Newsletter-Signup"},
		})
	})
	mux.HandleFunc("/api/v1/forms/form-news/submissions", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 || page > len(pages) {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		out := make([]map[string]any, 0, len(pages[page-1]))
		for i, data := range pages[page-1] {
			out = append(out, map[string]any{
				"data":       data,
				"created_at": fmt.Sprintf("2025-06-%02dT00:00:00Z", (page-1)*10+i+1),
			})
		}
		json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(testEnv(), "newsletter-signup", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	c.baseURL = srv.URL
	c.perPage = 2
	return c
}

func TestSubscribersPaginatesUntilShortPage(t *testing.T) {
	srv := formsServer(t, [][]map[string]any{
		{
			{"name": "Ann", "email": "ann@example.com"},
			{"Name": "Bob", "Email": "bob@example.com"},
		},
		{
			{"name": "Cyd", "email": "cyd@example.com"},
		},
	})
	c := newTestClient(t, srv)

	subs, err := c.Subscribers(context.Background())
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("subscribers = %d, want 3 across two pages", len(subs))
	}
	if subs[1].Name != "Bob" || subs[1].Email != "bob@example.com" {
		t.Errorf("capitalized field names not accepted: %+v", subs[1])
	}
}

func TestSubscribersDropsInvalidEmails(t *testing.T) {
	srv := formsServer(t, [][]map[string]any{
		{
			{"name": "NoAt", "email": "not-an-email"},
		},
	})
	c := newTestClient(t, srv)

	subs, err := c.Subscribers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Errorf("subscribers = %d, want 0 (email without @ must be dropped)", len(subs))
	}
}

func TestSubscribersUnknownForm(t *testing.T) {
	srv := formsServer(t, nil)
	c := newTestClient(t, srv)
	c.formName = "does-not-exist"

	if _, err := c.Subscribers(context.Background()); err == nil {
		t.Error("expected error for unknown form name")
	}
}

func TestDeduplicateFirstSeenWins(t *testing.T) {
	subs := []Subscriber{
		{Name: "Ann", Email: "ann@example.com", SubscribedAt: "2025-01-01"},
		{Name: "Ann Again", Email: " ANN@example.com ", SubscribedAt: "2025-02-01"},
		{Name: "Bob", Email: "bob@example.com", SubscribedAt: "2025-01-15"},
	}

	got := Deduplicate(subs)
	if len(got) != 2 {
		t.Fatalf("deduplicated = %d, want 2", len(got))
	}
	if got[0].Name != "Ann" {
		t.Errorf("first-seen record must win, got %q", got[0].Name)
	}
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	subs := []Subscriber{
		{Email: "a@example.com"},
		{Email: "A@Example.com"},
		{Email: "b@example.com"},
	}
	once := Deduplicate(subs)
	twice := Deduplicate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Deduplicate not idempotent: %v vs %v", once, twice)
	}
}
