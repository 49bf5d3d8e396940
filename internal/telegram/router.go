// Package telegram lets people play through a Telegram chat. Every chat
// drives one session in the shared session manager.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the router talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router turns chat updates into session actions and replies.
type Router struct {
	bot      Sender
	sessions *session.Manager
	logger   *zap.Logger

	mu    sync.Mutex
	chats map[int64]string // chat id -> session id
}

// NewRouter returns a Router playing through sessions. logger may be nil.
func NewRouter(bot Sender, sessions *session.Manager, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		bot:      bot,
		sessions: sessions,
		logger:   logger,
		chats:    make(map[int64]string),
	}
}

// HandleUpdate dispatches one update to the command or callback handlers.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, *upd.Message)
		return
	}
	r.send(upd.Message.Chat.ID, "Send /start to play.", nil)
}

// HandleCommand answers a slash command.
func (r *Router) HandleCommand(ctx context.Context, msg tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, "Spin the disks so that left and right make the target. Pick an operation:", operationKeyboard())
	case "status":
		s, ok := r.sessionFor(cid)
		if !ok {
			r.send(cid, "No game running. Send /start to play.", nil)
			return
		}
		r.showBoard(cid, s.View(ctx))
	case "stop":
		r.finish(ctx, cid)
	case "help":
		r.send(cid, "/start - new game\n/status - show the board\n/stop - end the game", nil)
	default:
		r.send(cid, "Unknown command. Try /help.", nil)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	mid := cb.Message.MessageID
	_, _ = r.bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	switch {
	case strings.HasPrefix(cb.Data, "op:"):
		op, err := puzzle.ParseOperation(strings.TrimPrefix(cb.Data, "op:"))
		if err != nil {
			return
		}
		r.edit(cid, mid, fmt.Sprintf("%s %s. Pick a difficulty:", op.Symbol(), op), difficultyKeyboard(op))

	case strings.HasPrefix(cb.Data, "diff:"):
		op, diff, err := parseDifficultyData(cb.Data)
		if err != nil {
			r.logger.Warn("bad callback data", zap.String("data", cb.Data), zap.Error(err))
			return
		}
		r.startGame(ctx, cid, mid, op, diff)

	case strings.HasPrefix(cb.Data, "rot:"):
		side, steps, err := parseRotateData(cb.Data)
		if err != nil {
			r.logger.Warn("bad callback data", zap.String("data", cb.Data), zap.Error(err))
			return
		}
		r.withSession(ctx, cid, mid, func(s *session.Session) (session.View, string, error) {
			v, err := s.Rotate(ctx, side, steps)
			return v, "", err
		})

	case cb.Data == cbSubmit:
		r.withSession(ctx, cid, mid, func(s *session.Session) (session.View, string, error) {
			res, v, err := s.Submit(ctx)
			if err != nil {
				return v, "", err
			}
			return v, renderEvaluation(res, v), nil
		})

	case cb.Data == cbPause:
		r.withSession(ctx, cid, mid, func(s *session.Session) (session.View, string, error) {
			v, err := s.Pause(ctx)
			return v, "", err
		})

	case cb.Data == cbResume:
		r.withSession(ctx, cid, mid, func(s *session.Session) (session.View, string, error) {
			v, err := s.Resume(ctx)
			return v, "", err
		})

	case cb.Data == cbRestart:
		r.withSession(ctx, cid, mid, func(s *session.Session) (session.View, string, error) {
			v, err := s.Restart(ctx)
			return v, "", err
		})

	case cb.Data == cbMenu:
		r.edit(cid, mid, "Pick an operation:", operationKeyboard())

	case cb.Data == cbEnd:
		r.edit(cid, mid, "Game ended.", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		r.finish(ctx, cid)
	}
}

// startGame reconfigures the chat's session, or creates one.
func (r *Router) startGame(ctx context.Context, cid int64, mid int, op puzzle.Operation, diff puzzle.Difficulty) {
	if s, ok := r.sessionFor(cid); ok {
		v, err := s.Configure(ctx, op, diff)
		if err == nil {
			r.edit(cid, mid, renderBoard(v), boardKeyboard(v))
			return
		}
		r.logger.Error("configure session", zap.Int64("chat_id", cid), zap.Error(err))
	}

	s, err := r.sessions.Create(ctx, op, diff)
	if err != nil {
		r.logger.Error("create session", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Could not start a game, please try again.", nil)
		return
	}
	r.mu.Lock()
	r.chats[cid] = s.ID()
	r.mu.Unlock()

	v := s.View(ctx)
	r.edit(cid, mid, renderBoard(v), boardKeyboard(v))
}

// withSession runs act against the chat's session and redraws the board.
// note, when set, is shown above the board.
func (r *Router) withSession(ctx context.Context, cid int64, mid int, act func(*session.Session) (session.View, string, error)) {
	s, ok := r.sessionFor(cid)
	if !ok {
		r.send(cid, "No game running. Send /start to play.", nil)
		return
	}

	v, note, err := act(s)
	switch {
	case errors.Is(err, session.ErrSessionOver):
		text := "Game over."
		if v.Result != nil {
			text = renderResult(*v.Result)
		}
		r.edit(cid, mid, text, gameOverKeyboard())
		return
	case errors.Is(err, session.ErrSessionPaused):
		note = "Paused. Resume to keep playing."
	case err != nil:
		r.logger.Error("session action", zap.Int64("chat_id", cid), zap.Error(err))
		return
	}

	text := renderBoard(v)
	if note != "" {
		text = note + "\n\n" + text
	}
	r.edit(cid, mid, text, boardKeyboard(v))
}

func (r *Router) showBoard(cid int64, v session.View) {
	if v.State == session.Over && v.Result != nil {
		r.send(cid, renderResult(*v.Result), gameOverKeyboard())
		return
	}
	r.send(cid, renderBoard(v), boardKeyboard(v))
}

func (r *Router) finish(ctx context.Context, cid int64) {
	r.mu.Lock()
	id, ok := r.chats[cid]
	delete(r.chats, cid)
	r.mu.Unlock()
	if !ok {
		r.send(cid, "No game running. Send /start to play.", nil)
		return
	}

	res, err := r.sessions.Finish(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		r.send(cid, "That game has already been cleaned up. Send /start to play again.", nil)
		return
	}
	if err != nil {
		r.logger.Error("finish session", zap.Int64("chat_id", cid), zap.Error(err))
	}
	r.send(cid, renderResult(res), nil)
}

// sessionFor returns the chat's session and forgets ids the manager has
// already evicted.
func (r *Router) sessionFor(cid int64) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.chats[cid]
	if !ok {
		return nil, false
	}
	s, err := r.sessions.Get(id)
	if err != nil {
		delete(r.chats, cid)
		return nil, false
	}
	return s, true
}

func (r *Router) send(chatID int64, text string, kb any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.logger.Warn("telegram send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) edit(chatID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, kb)
	if _, err := r.bot.Send(edit); err != nil {
		r.logger.Warn("telegram edit", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// parseDifficultyData parses "diff:<operation>:<difficulty>".
func parseDifficultyData(data string) (puzzle.Operation, puzzle.Difficulty, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed %q", data)
	}
	op, err := puzzle.ParseOperation(parts[1])
	if err != nil {
		return 0, 0, err
	}
	diff, err := puzzle.ParseDifficulty(parts[2])
	if err != nil {
		return 0, 0, err
	}
	return op, diff, nil
}

// parseRotateData parses "rot:<side>:<steps>".
func parseRotateData(data string) (session.Side, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed %q", data)
	}
	side, err := session.ParseSide(parts[1])
	if err != nil {
		return 0, 0, err
	}
	steps, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("steps: %w", err)
	}
	return side, steps, nil
}
