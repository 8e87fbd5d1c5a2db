package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/jdelaire/tgbridge/core"
)

const sendTimeout = 10 * time.Second

var (
	ErrEmptyPayload  = errors.New("empty callback payload")
	ErrSourceTooLong = fmt.Errorf("callback source exceeds %d characters", core.MaxSourceLen)
	ErrBadChatID     = errors.New("invalid chat_id")
)

// payload is the common shape of task-completion callbacks. Unknown fields
// are ignored; a payload with none of these set is forwarded as raw JSON.
type payload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID       string   `json:"taskId"`
		CallbackType string   `json:"callbackType"`
		ResultURLs   []string `json:"resultUrls"`
		Info         struct {
			ResultURLs []string `json:"resultUrls"`
		} `json:"info"`
	} `json:"data"`
}

type handler struct {
	notifiers *core.Registry
	logger    *slog.Logger
}

// New returns the callback router. Providers POST to /{source}, optionally
// with ?chat_id= naming the chat to notify and ?notifier= naming a
// registered notifier other than the default; GET /{source} answers
// reachability probes.
func New(notifiers *core.Registry, logger *slog.Logger) http.Handler {
	h := &handler{notifiers: notifiers, logger: logger}

	r := chi.NewRouter()
	r.Get("/{source}", h.probe)
	r.Post("/{source}", h.receive)
	return r
}

func (h *handler) probe(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, core.Response{OK: true})
}

func (h *handler) receive(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if len(source) > core.MaxSourceLen {
		core.Fail(w, r, ErrSourceTooLong)
		return
	}

	chatID, err := chatIDFrom(r)
	if err != nil {
		core.Fail(w, r, err)
		return
	}

	notifier, err := h.notifiers.Lookup(r.URL.Query().Get("notifier"))
	if err != nil {
		core.Fail(w, r, err)
		return
	}

	text, err := summarize(source, r)
	if err != nil {
		core.Fail(w, r, err)
		return
	}

	n := core.Notification{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Text:      text,
		Source:    "callback:" + source,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()
	if err := notifier.Send(ctx, n); err != nil {
		h.logger.Error("callback delivery failed", "id", n.ID, "source", source, "notifier", notifier.Name(), "error", err)
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, core.Response{OK: false, Error: "delivery failed"})
		return
	}

	h.logger.Info("callback delivered", "id", n.ID, "source", source, "notifier", notifier.Name(), "chat_id", chatID)
	render.JSON(w, r, core.Response{OK: true, ID: n.ID})
}

func chatIDFrom(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("chat_id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadChatID, raw)
	}
	return id, nil
}

func summarize(source string, r *http.Request) (string, error) {
	body, ok := core.BodyFrom(r.Context())
	if !ok {
		data, err := io.ReadAll(io.LimitReader(r.Body, core.MaxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("read callback: %w", err)
		}
		body = &core.Body{Raw: data}
	}
	if body.Err != nil {
		return "", body.Err
	}
	if len(bytes.TrimSpace(body.Raw)) == 0 {
		return "", ErrEmptyPayload
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Callback from %s", source)

	if len(body.Form) > 0 {
		keys := make([]string, 0, len(body.Form))
		for k := range body.Form {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, strings.Join(body.Form[k], ", "))
		}
		return truncate(b.String()), nil
	}

	var p payload
	if err := json.Unmarshal(body.Raw, &p); err != nil {
		return "", fmt.Errorf("decode callback: %w", err)
	}

	known := false
	if p.Data.TaskID != "" {
		fmt.Fprintf(&b, ": task %s", p.Data.TaskID)
		known = true
	}
	if p.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", p.Code)
		known = true
	}
	if p.Data.CallbackType != "" {
		fmt.Fprintf(&b, "\nstatus: %s", p.Data.CallbackType)
		known = true
	}
	if p.Msg != "" {
		fmt.Fprintf(&b, "\n%s", p.Msg)
		known = true
	}
	for _, u := range append(p.Data.ResultURLs, p.Data.Info.ResultURLs...) {
		fmt.Fprintf(&b, "\n%s", u)
		known = true
	}

	if !known {
		var compact bytes.Buffer
		if err := json.Compact(&compact, body.Raw); err != nil {
			return "", fmt.Errorf("compact callback: %w", err)
		}
		b.WriteString(":\n")
		b.Write(compact.Bytes())
	}
	return truncate(b.String()), nil
}

func truncate(s string) string {
	if len(s) <= core.MaxTextLen {
		return s
	}
	return strings.ToValidUTF8(s[:core.MaxTextLen-3], "") + "..."
}
