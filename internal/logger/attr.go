package logger

import (
	"log/slog"

	"github.com/comalice/hfsm"
)

// Error records err under "error". A nil error yields an empty Attr, which
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Entity(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("entity", id)
}

func StateID(key string, id hfsm.StateID) slog.Attr {
	return slog.String(key, id.String())
}

func EventID(id hfsm.EventID) slog.Attr {
	return slog.String("event", id.String())
}

func Result(r hfsm.Result) slog.Attr {
	return slog.String("result", r.String())
}

// Stack records the active states of os, outermost first.
func Stack(os hfsm.ObjectState) slog.Attr {
	active := os.Active()
	vals := make([]int, len(active))
	for i, id := range active {
		vals[i] = int(id)
	}
	return slog.Any("stack", vals)
}
