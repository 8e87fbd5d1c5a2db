package telegram_bot_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jdelaire/tgbridge/adapters/telegram_bot"
	"github.com/jdelaire/tgbridge/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI emulates the subset of the Bot API the adapter calls.
type fakeAPI struct {
	mu         sync.Mutex
	methods    []string
	webhookURL string
	failMethod string
	updates    []map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.methods = append(f.methods, method)
	failing := method == f.failMethod
	f.mu.Unlock()

	if failing {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 400, "description": "Bad Request: " + method + " rejected",
		})
		return
	}

	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 7, "is_bot": true, "first_name": "Test", "username": "test_bot"}
	case "setWebhook":
		f.mu.Lock()
		f.webhookURL = r.FormValue("url")
		f.mu.Unlock()
	case "getUpdates":
		f.mu.Lock()
		pending := f.updates
		f.updates = nil
		f.mu.Unlock()
		if len(pending) == 0 {
			time.Sleep(20 * time.Millisecond)
			pending = []map[string]any{}
		}
		result = pending
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func newTestBot(t *testing.T, api *fakeAPI, handler core.MessageHandler) *telegram_bot.Bot {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	return telegram_bot.New("test-token", srv.URL+"/bot%s/%s", handler, testLogger())
}

// unavailableAPI answers every Bot API method like a failing reverse proxy.
func unavailableAPI(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/bot%s/%s"
}

func textUpdate(updateID int, text string) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": 1,
			"from":       map[string]any{"id": 42, "is_bot": false, "first_name": "Ann", "username": "ann"},
			"chat":       map[string]any{"id": 123, "type": "private"},
			"date":       time.Now().Unix(),
			"text":       text,
		},
	}
}

func TestNewMakesNoAPICalls(t *testing.T) {
	api := &fakeAPI{}
	newTestBot(t, api, func(core.InboundMessage) {})

	if calls := api.called(); len(calls) != 0 {
		t.Errorf("calls = %v, want none before the first API call", calls)
	}
}

func TestAuthorizationFailureSurfacesOnFirstCall(t *testing.T) {
	api := &fakeAPI{failMethod: "getMe"}
	bot := newTestBot(t, api, func(core.InboundMessage) {})

	err := bot.DeleteWebhook(context.Background())
	if err == nil || !strings.Contains(err.Error(), "authorize bot") {
		t.Fatalf("err = %v, want authorization error", err)
	}
	if calls := api.called(); len(calls) != 1 || calls[0] != "getMe" {
		t.Errorf("calls = %v, want [getMe]", calls)
	}
}

func TestAuthorizesOnce(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, func(core.InboundMessage) {})

	ctx := context.Background()
	bot.DeleteWebhook(ctx)
	bot.DeleteWebhook(ctx)

	want := []string{"getMe", "deleteWebhook", "deleteWebhook"}
	if calls := api.called(); strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestGatewayServesWhileBotAPIUnavailable(t *testing.T) {
	bot := telegram_bot.New("123:abc", unavailableAPI(t), func(core.InboundMessage) {}, testLogger())
	srv := core.NewServer(core.Options{CallbackBaseURL: "https://example.com"}, bot, nil, testLogger())

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Close()

	if srv.WebhookState() != core.WebhookFailed {
		t.Errorf("state = %v, want failed", srv.WebhookState())
	}
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", srv.Addr().(*net.TCPAddr).Port))
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestStartReturnsOnCancelWhileUnauthorized(t *testing.T) {
	bot := telegram_bot.New("123:abc", unavailableAPI(t), func(core.InboundMessage) {}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- bot.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("start = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestProcessUpdateDispatchesText(t *testing.T) {
	var got []core.InboundMessage
	bot := newTestBot(t, &fakeAPI{}, func(m core.InboundMessage) { got = append(got, m) })

	raw, _ := json.Marshal(textUpdate(100, "/status"))
	if err := bot.ProcessUpdate(context.Background(), raw); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("handled %d messages, want 1", len(got))
	}
	m := got[0]
	if m.UpdateID != 100 || m.ChatID != 123 || m.UserID != 42 || m.Username != "ann" || m.Text != "/status" {
		t.Errorf("message = %+v", m)
	}
}

func TestProcessUpdateIgnoresNonText(t *testing.T) {
	called := false
	bot := newTestBot(t, &fakeAPI{}, func(core.InboundMessage) { called = true })

	raw := json.RawMessage(`{"update_id":5,"edited_message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"},"text":"x"}}`)
	if err := bot.ProcessUpdate(context.Background(), raw); err != nil {
		t.Fatalf("process: %v", err)
	}
	if called {
		t.Error("handler called for update without a message")
	}
}

func TestProcessUpdateMalformed(t *testing.T) {
	bot := newTestBot(t, &fakeAPI{}, func(core.InboundMessage) {})

	for _, raw := range []string{``, `{"update_id":`, `[]`} {
		if err := bot.ProcessUpdate(context.Background(), json.RawMessage(raw)); err == nil {
			t.Errorf("ProcessUpdate(%q) = nil, want error", raw)
		}
	}
}

func TestSetAndDeleteWebhook(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, func(core.InboundMessage) {})

	ctx := context.Background()
	if err := bot.DeleteWebhook(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := bot.SetWebhook(ctx, "https://example.com/webhook"); err != nil {
		t.Fatalf("set: %v", err)
	}

	calls := api.called()
	if len(calls) != 3 || calls[1] != "deleteWebhook" || calls[2] != "setWebhook" {
		t.Errorf("calls = %v", calls)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.webhookURL != "https://example.com/webhook" {
		t.Errorf("url = %q", api.webhookURL)
	}
}

func TestSetWebhookAPIError(t *testing.T) {
	bot := newTestBot(t, &fakeAPI{failMethod: "setWebhook"}, func(core.InboundMessage) {})

	err := bot.SetWebhook(context.Background(), "https://example.com/webhook")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "setWebhook rejected") {
		t.Errorf("err = %v", err)
	}
}

func TestWebhookCallsHonourCancelledContext(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, func(core.InboundMessage) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.DeleteWebhook(ctx); err == nil {
		t.Error("delete: expected context error")
	}
	if err := bot.SetWebhook(ctx, "https://example.com/webhook"); err == nil {
		t.Error("set: expected context error")
	}
	if calls := api.called(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestStartPollsUpdates(t *testing.T) {
	api := &fakeAPI{updates: []map[string]any{textUpdate(1, "/help"), textUpdate(2, "/start")}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var texts []string
	bot := newTestBot(t, api, func(m core.InboundMessage) {
		mu.Lock()
		texts = append(texts, m.Text)
		if len(texts) == 2 {
			cancel()
		}
		mu.Unlock()
	})

	if err := bot.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 || texts[0] != "/help" || texts[1] != "/start" {
		t.Errorf("texts = %v", texts)
	}
}
