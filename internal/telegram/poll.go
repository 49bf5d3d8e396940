package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updater is the long-polling half of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

const (
	pollTimeout   = 30 // seconds, server side
	baseDelay     = time.Second
	maxDelay      = 15 * time.Second
	idleDelay     = 200 * time.Millisecond
	tooManyDelay  = 3 * time.Second
	netErrorDelay = 2 * time.Second
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// retryDelay picks how long to wait after a failed GetUpdates. Telegram's
// "retry after N" hint wins; the result is clamped to [baseDelay, maxDelay].
func retryDelay(err error) time.Duration {
	d := baseDelay
	s := strings.ToLower(err.Error())

	var ne net.Error
	switch {
	case strings.Contains(s, "too many requests") || strings.Contains(s, "retry after"):
		d = tooManyDelay
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				d = time.Duration(n) * time.Second
			}
		}
	case errors.As(err, &ne) && ne.Timeout():
		d = netErrorDelay
	}

	return min(max(d, baseDelay), maxDelay)
}

// nextDelay doubles baseDelay for every consecutive failure, never waits
// less than retryDelay's hint and is capped at maxDelay.
func nextDelay(failures int, err error) time.Duration {
	d := baseDelay
	for i := 1; i < failures && d < maxDelay; i++ {
		d *= 2
	}
	return min(max(d, retryDelay(err)), maxDelay)
}

// Poll long-polls for updates and hands each one to handle, in order, until
// ctx is cancelled.
func Poll(ctx context.Context, bot Updater, handle func(tgbotapi.Update), logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	offset := 0
	failures := 0

	for {
		if ctx.Err() != nil {
			logger.Info("telegram polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout

		updates, err := bot.GetUpdates(u)
		if err != nil {
			failures++
			d := nextDelay(failures, err)
			logger.Warn("telegram polling error",
				zap.Error(err),
				zap.Int("failures", failures),
				zap.Duration("retry_in", d),
			)
			if !sleep(ctx, d) {
				return
			}
			continue
		}
		failures = 0

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, idleDelay) {
			return
		}
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
