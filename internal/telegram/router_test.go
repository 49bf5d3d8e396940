package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"disk-spinner/internal/prefs"
	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// lastText returns the text of the most recent message or edit.
func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	switch c := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return c.Text
	case tgbotapi.EditMessageTextConfig:
		return c.Text
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

const chatID = int64(4242)

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

func newTestRouter(t *testing.T) (*Router, *fakeSender, *session.Manager) {
	t.Helper()
	bot := &fakeSender{}
	m := session.NewManager(prefs.NewMemory(), session.WithRand(puzzle.NewSeededRand(3)))
	return NewRouter(bot, m, nil), bot, m
}

func TestStartShowsOperationKeyboard(t *testing.T) {
	r, bot, _ := newTestRouter(t)
	r.HandleUpdate(context.Background(), command("/start"))

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected a message, got %T", bot.sent[0])
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", msg.ReplyMarkup)
	}
	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			data = append(data, *b.CallbackData)
		}
	}
	want := "op:addition op:subtraction op:multiplication op:division"
	if got := strings.Join(data, " "); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlayThroughCallbacks(t *testing.T) {
	r, bot, m := newTestRouter(t)
	ctx := context.Background()

	r.HandleUpdate(ctx, callback("op:multiplication"))
	if text := bot.lastText(t); !strings.Contains(text, "Pick a difficulty") {
		t.Fatalf("expected difficulty prompt, got %q", text)
	}

	r.HandleUpdate(ctx, callback("diff:multiplication:easy"))
	if m.Len() != 1 {
		t.Fatalf("expected one session, got %d", m.Len())
	}
	if text := bot.lastText(t); !strings.Contains(text, "Target") || !strings.Contains(text, "1 * 1") {
		t.Fatalf("expected board with 1 * 1, got %q", text)
	}

	r.HandleUpdate(ctx, callback("rot:left:2"))
	if text := bot.lastText(t); !strings.Contains(text, "3 * 1") {
		t.Fatalf("expected left disk on 3, got %q", text)
	}

	s, ok := r.sessionFor(chatID)
	if !ok {
		t.Fatal("expected chat to have a session")
	}
	v := s.View(ctx)
	for _, l := range v.Left.Values {
		for _, rv := range v.Right.Values {
			if l*rv == v.Target {
				s.Select(ctx, session.Left, l)
				s.Select(ctx, session.Right, rv)
			}
		}
	}
	r.HandleUpdate(ctx, callback("submit"))
	if text := bot.lastText(t); !strings.HasPrefix(text, "✅ Correct! +10") {
		t.Fatalf("expected correct answer, got %q", text)
	}

	r.HandleUpdate(ctx, callback("pause"))
	r.HandleUpdate(ctx, callback("submit"))
	if text := bot.lastText(t); !strings.HasPrefix(text, "Paused") {
		t.Fatalf("expected paused note, got %q", text)
	}

	r.HandleUpdate(ctx, command("/stop"))
	if text := bot.lastText(t); !strings.Contains(text, "Final score: 10") {
		t.Fatalf("expected final score 10, got %q", text)
	}
	if m.Len() != 0 {
		t.Fatalf("expected session to be removed, got %d", m.Len())
	}
	if len(bot.requests) == 0 {
		t.Fatal("expected callbacks to be acknowledged")
	}
}

func TestChoosingAgainReconfiguresSameSession(t *testing.T) {
	r, _, m := newTestRouter(t)
	ctx := context.Background()

	r.HandleUpdate(ctx, callback("diff:addition:easy"))
	first, _ := r.sessionFor(chatID)
	r.HandleUpdate(ctx, callback("diff:division:hard"))
	second, _ := r.sessionFor(chatID)

	if first != second || m.Len() != 1 {
		t.Fatalf("expected the chat to keep one session, got %d", m.Len())
	}
	if v := second.View(ctx); v.Operation != "division" || v.Difficulty != "hard" {
		t.Fatalf("expected division/hard, got %s/%s", v.Operation, v.Difficulty)
	}
}

func TestCommandsWithoutGame(t *testing.T) {
	r, bot, _ := newTestRouter(t)
	ctx := context.Background()

	for _, cmd := range []string{"/status", "/stop"} {
		r.HandleUpdate(ctx, command(cmd))
		if text := bot.lastText(t); !strings.Contains(text, "No game running") {
			t.Fatalf("%s: expected no-game notice, got %q", cmd, text)
		}
	}
	r.HandleUpdate(ctx, callback("submit"))
	if text := bot.lastText(t); !strings.Contains(text, "No game running") {
		t.Fatalf("submit: expected no-game notice, got %q", text)
	}
}

func TestParseCallbackData(t *testing.T) {
	side, steps, err := parseRotateData("rot:right:-1")
	if err != nil || side != session.Right || steps != -1 {
		t.Fatalf("unexpected rotate parse %v %d %v", side, steps, err)
	}
	for _, bad := range []string{"rot:up:1", "rot:left:x", "rot:left"} {
		if _, _, err := parseRotateData(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}

	op, diff, err := parseDifficultyData("diff:subtraction:medium")
	if err != nil || op != puzzle.Subtraction || diff != puzzle.Medium {
		t.Fatalf("unexpected difficulty parse %v %v %v", op, diff, err)
	}
	if _, _, err := parseDifficultyData("diff:subtraction"); err == nil {
		t.Fatal("expected error for missing difficulty")
	}
}

func TestRenderEvaluation(t *testing.T) {
	v := session.View{Expression: "7 / 2"}
	if got := renderEvaluation(puzzle.EvaluationResult{Target: 4}, v); !strings.Contains(got, "no whole-number result") {
		t.Fatalf("unexpected text %q", got)
	}
	v.Expression = "3 + 4"
	got := renderEvaluation(puzzle.EvaluationResult{Defined: true, Result: 7, Target: 8}, v)
	if got != "❌ 3 + 4 = 7, not 8" {
		t.Fatalf("unexpected text %q", got)
	}
}

type fakeUpdater struct {
	mu     sync.Mutex
	calls  int
	cancel context.CancelFunc
}

func (f *fakeUpdater) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	switch f.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	case 2:
		if cfg.Offset != 12 {
			return nil, errors.New("wrong offset")
		}
		f.cancel()
		return []tgbotapi.Update{{UpdateID: 12}}, nil
	}
	return nil, nil
}

func TestPollAdvancesOffsetAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUpdater{cancel: cancel}

	var seen []int
	done := make(chan struct{})
	go func() {
		Poll(ctx, up, func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) }, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Poll did not stop")
	}
	if len(seen) != 3 || seen[2] != 12 {
		t.Fatalf("expected updates 10, 11, 12, got %v", seen)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		err  error
		want time.Duration
	}{
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{errors.New("Too Many Requests: retry after 120"), 15 * time.Second},
		{errors.New("bad gateway"), time.Second},
	}
	for _, tc := range tests {
		if got := retryDelay(tc.err); got != tc.want {
			t.Fatalf("retryDelay(%q): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}

func TestNextDelayBacksOff(t *testing.T) {
	generic := errors.New("bad gateway")
	tests := []struct {
		failures int
		err      error
		want     time.Duration
	}{
		{1, generic, time.Second},
		{2, generic, 2 * time.Second},
		{3, generic, 4 * time.Second},
		{4, generic, 8 * time.Second},
		{5, generic, 15 * time.Second},
		{40, generic, 15 * time.Second},
		{1, errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{4, errors.New("Too Many Requests: retry after 2"), 8 * time.Second},
	}
	for _, tc := range tests {
		if got := nextDelay(tc.failures, tc.err); got != tc.want {
			t.Fatalf("nextDelay(%d, %q): expected %s, got %s", tc.failures, tc.err, tc.want, got)
		}
	}
}
