package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kingdomembassy/newsletter/internal/config"
)

type fakeEmail struct {
	sent int32
	err  error
}

func (f *fakeEmail) Send(_ context.Context, _, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	atomic.AddInt32(&f.sent, 1)
	return nil
}

func newTestNotifier(env *config.Env, email *fakeEmail) *Notifier {
	var provider *fakeEmail
	if email != nil {
		provider = email
	}
	n := New(env, "https://example.org/live", nil, zerolog.Nop())
	if provider != nil {
		n.email = provider
	}
	n.limiter = rate.NewLimiter(rate.Inf, 1)
	return n
}

func TestNotifySkipsUnconfiguredTelegramWithoutTouchingOthers(t *testing.T) {
	var ntfyHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&ntfyHits, 1)
	}))
	defer srv.Close()

	env := &config.Env{
		NtfyServer: srv.URL,
		NtfyTopic:  "church-live",
		// no telegram credentials
	}
	n := newTestNotifier(env, &fakeEmail{})

	result := n.Notify(context.Background(), "we are live", PlatformTelegram)

	if len(result) != 1 {
		t.Fatalf("result has %d channels, want 1: %v", len(result), result)
	}
	if got, ok := result[PlatformTelegram]; !ok || got {
		t.Errorf("telegram = %v (present=%v), want false skip", got, ok)
	}
	if atomic.LoadInt32(&ntfyHits) != 0 {
		t.Error("ntfy must not be attempted when another platform is selected")
	}
}

func TestNotifyChannelFailureIsolation(t *testing.T) {
	// ntfy rejects, everything else succeeds.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	env := &config.Env{
		NtfyServer:       srv.URL,
		NtfyTopic:        "church-live",
		TelegramBotToken: "tok",
		TelegramChatID:   "42",
		DiscordBotToken:  "tok",
		DiscordChannelID: "99",
		AlertRecipients:  []string{"a@example.com", "b@example.com"},
	}
	email := &fakeEmail{}
	n := newTestNotifier(env, email)
	n.sendTelegram = func(_, _, _ string) error { return errors.New("telegram down") }
	n.sendDiscord = func(_, _, _ string) error { return nil }

	result := n.Notify(context.Background(), "we are live", PlatformAll)

	want := Result{
		PlatformNtfy:     false,
		PlatformTelegram: false,
		PlatformDiscord:  true,
		PlatformEmail:    true,
	}
	for channel, expected := range want {
		if result[channel] != expected {
			t.Errorf("%s = %v, want %v", channel, result[channel], expected)
		}
	}
	if atomic.LoadInt32(&email.sent) != 2 {
		t.Errorf("email sends = %d, want 2 (one per recipient)", email.sent)
	}
}

func TestNotifyNtfySendsHeaders(t *testing.T) {
	var gotTitle, gotPriority, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
	}))
	defer srv.Close()

	env := &config.Env{NtfyServer: srv.URL, NtfyTopic: "church-live"}
	n := newTestNotifier(env, nil)

	result := n.Notify(context.Background(), "service starting", PlatformNtfy)
	if !result[PlatformNtfy] {
		t.Fatal("ntfy delivery should succeed")
	}
	if gotTitle == "" || gotPriority != "high" {
		t.Errorf("push headers not set: title=%q priority=%q", gotTitle, gotPriority)
	}
	if gotBody != "service starting" {
		t.Errorf("body = %q, want raw message text", gotBody)
	}
}

func TestNotifyEmailSkipsWithoutRecipients(t *testing.T) {
	env := &config.Env{}
	n := newTestNotifier(env, &fakeEmail{})
	n.env.AlertRecipients = nil

	result := n.Notify(context.Background(), "live", PlatformEmail)
	if result[PlatformEmail] {
		t.Error("email must skip (false) without a recipient list")
	}
}

func TestNotifyEmailPartialFailureStillTrue(t *testing.T) {
	env := &config.Env{AlertRecipients: []string{"a@example.com", "b@example.com"}}

	calls := 0
	n := newTestNotifier(env, nil)
	n.email = providerFunc(func(_ context.Context, to, _, _ string) error {
		calls++
		if to == "a@example.com" {
			return errors.New("bounce")
		}
		return nil
	})

	result := n.Notify(context.Background(), "live", PlatformEmail)
	if !result[PlatformEmail] {
		t.Error("one delivered recipient should mark the channel successful")
	}
	if calls != 2 {
		t.Errorf("send attempts = %d, want 2 (failure must not stop the list)", calls)
	}
}

type providerFunc func(ctx context.Context, to, subject, html string) error

func (f providerFunc) Send(ctx context.Context, to, subject, html string) error {
	return f(ctx, to, subject, html)
}
