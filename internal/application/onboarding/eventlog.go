package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultLogTail is how many log lines are presented to the user.
const DefaultLogTail = 200

const logTimeLayout = "15:04:05"

// EventLog appends timestamped lines to a session's audit trail.
type EventLog struct {
	store SessionStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewEventLog(store SessionStore, now func() time.Time, log zerolog.Logger) *EventLog {
	if now == nil {
		now = time.Now
	}
	return &EventLog{store: store, now: now, log: log}
}

// Append adds "[HH:MM:SS] msg" to the session log. It never fails: a session
// that finished or was canceled concurrently is silently skipped and backend
// errors only reach the process log.
func (l *EventLog) Append(ctx context.Context, onboardingID, msg string) {
	sess, err := l.store.Get(ctx, onboardingID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.log.Warn().Err(err).Str("onboarding_id", onboardingID).Msg("failed to load session for log append")
		}
		return
	}
	sess.Logs = append(sess.Logs, fmt.Sprintf("[%s] %s", l.now().Format(logTimeLayout), msg))
	if err := l.store.Put(ctx, sess); err != nil {
		l.log.Warn().Err(err).Str("onboarding_id", onboardingID).Msg("failed to persist log append")
	}
}

// Tail returns the last n entries of logs.
func Tail(logs []string, n int) []string {
	if n <= 0 || len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}
