package extensibility

import (
	"log/slog"
	"time"

	"github.com/comalice/hfsm"
)

// LogAction wraps an action so each call is logged at debug level with its
// outcome and duration.
func LogAction[C, M any](log *slog.Logger, name string, a hfsm.Action[C, M]) hfsm.Action[C, M] {
	return func(ctx C, msg M) bool {
		start := time.Now()
		ok := a(ctx, msg)
		log.Debug("action", slog.String("name", name), slog.Bool("ok", ok), slog.Duration("took", time.Since(start)))
		return ok
	}
}

func LogCondition[C, M any](log *slog.Logger, name string, c hfsm.Condition[C, M]) hfsm.Condition[C, M] {
	return func(ctx C, msg M) bool {
		ok := c(ctx, msg)
		log.Debug("condition", slog.String("name", name), slog.Bool("pass", ok))
		return ok
	}
}

func LogEntry[C any](log *slog.Logger, state string, e hfsm.Entry[C]) hfsm.Entry[C] {
	return func(ctx C) {
		log.Debug("entry", slog.String("state", state))
		if e != nil {
			e(ctx)
		}
	}
}

func LogExit[C any](log *slog.Logger, state string, e hfsm.Exit[C]) hfsm.Exit[C] {
	return func(ctx C) {
		log.Debug("exit", slog.String("state", state))
		if e != nil {
			e(ctx)
		}
	}
}
