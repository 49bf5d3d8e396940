package telegram

import (
	"fmt"
	"strings"

	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbSubmit  = "submit"
	cbRestart = "restart"
	cbEnd     = "end"
	cbPause   = "pause"
	cbResume  = "resume"
	cbMenu    = "menu"
)

func operationKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, op := range puzzle.Operations() {
		label := fmt.Sprintf("%s %s", op.Symbol(), op)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "op:"+op.Key()))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row[:2], row[2:])
}

func difficultyKeyboard(op puzzle.Operation) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range puzzle.Difficulties() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(d.String(), fmt.Sprintf("diff:%s:%s", op.Key(), d.Key())))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func boardKeyboard(v session.View) tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData
	pause := btn("⏸ Pause", cbPause)
	if v.State == session.Paused {
		pause = btn("▶ Resume", cbResume)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("◀ L", "rot:left:-1"), btn("L ▶", "rot:left:1")),
		tgbotapi.NewInlineKeyboardRow(btn("◀ R", "rot:right:-1"), btn("R ▶", "rot:right:1")),
		tgbotapi.NewInlineKeyboardRow(btn("✅ Submit", cbSubmit)),
		tgbotapi.NewInlineKeyboardRow(pause, btn("🏁 End", cbEnd)),
	)
}

func gameOverKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Play again", cbRestart),
			tgbotapi.NewInlineKeyboardButtonData("🔀 Change operation", cbMenu),
		),
	)
}

// renderBoard is the text shown above the board keyboard.
func renderBoard(v session.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s\n", titleCase(v.Operation), titleCase(v.Difficulty))
	fmt.Fprintf(&b, "🎯 Target: %d\n", v.Target)
	fmt.Fprintf(&b, "🔢 %s\n", v.Expression)
	fmt.Fprintf(&b, "Score: %d   Streak: %d\n", v.Score, v.Streak)
	switch v.State {
	case session.Paused:
		fmt.Fprintf(&b, "⏸ Paused, %ds left", int(v.RemainingSeconds))
	default:
		fmt.Fprintf(&b, "⏱ %ds left", int(v.RemainingSeconds))
	}
	return b.String()
}

func renderEvaluation(res puzzle.EvaluationResult, v session.View) string {
	if res.Correct {
		return fmt.Sprintf("✅ Correct! +%d (streak %d)", res.PointsAwarded, res.NewStreak)
	}
	if !res.Defined {
		return fmt.Sprintf("❌ %s has no whole-number result", v.Expression)
	}
	return fmt.Sprintf("❌ %s = %d, not %d", v.Expression, res.Result, res.Target)
}

func renderResult(r session.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 Time's up! Final score: %d\n", r.Score)
	if r.NewHighScore {
		fmt.Fprintf(&b, "🏆 New high score! (previous best %d)", r.PreviousHighScore)
	} else {
		fmt.Fprintf(&b, "Best so far: %d", r.PreviousHighScore)
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
