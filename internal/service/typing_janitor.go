package service

import (
	"context"
	"time"

	"marketplace-be/internal/pkg/logger"
)

// DefaultJanitorInterval is how often expired typing rows are swept when
// no interval is configured.
const DefaultJanitorInterval = 30 * time.Second

// TypingJanitor periodically removes expired typing indicator rows so a
// client that vanished mid-keystroke does not look like it types forever.
type TypingJanitor struct {
	chat     IChatService
	interval time.Duration
	log      logger.ILogger
}

func NewTypingJanitor(chat IChatService, interval time.Duration, log logger.ILogger) *TypingJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &TypingJanitor{
		chat:     chat,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (j *TypingJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *TypingJanitor) sweep(ctx context.Context) {
	swept, err := j.chat.SweepExpiredTyping(ctx)
	if err != nil {
		j.log.Error("typing_janitor", "sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if swept > 0 {
		j.log.Debug("typing_janitor", "swept expired typing indicators", map[string]interface{}{
			"count": swept,
		})
	}
}
