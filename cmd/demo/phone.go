package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/extensibility"
)

const (
	idle hfsm.StateID = iota
	ringing
	talking
	held
	dialing
	errorTone
)

// Outgoing call handling.
const (
	originating hfsm.StateID = iota + 10
	seize
	outpulse
	alerting
)

const (
	evOffHook hfsm.EventID = iota
	evOnHook
	evRing
	evDigit
	evSeized
	evOutpulsed
	evAnswer
	evHold
	evResume
	evErrorTone
	evTimeout = hfsm.EventTimeout
)

var stateNames = map[hfsm.StateID]string{
	idle: "IDLE", ringing: "RINGING", talking: "TALKING", held: "HELD",
	dialing: "DIALING", errorTone: "ERROR", originating: "ORIGINATING",
	seize: "SEIZE", outpulse: "OUTPULSE", alerting: "ALERTING",
}

var eventNames = map[hfsm.EventID]string{
	evOffHook: "OFFHOOK", evOnHook: "ONHOOK", evRing: "RING", evDigit: "DIGIT",
	evSeized: "SEIZED", evOutpulsed: "OUTPULSED", evAnswer: "ANSWER",
	evHold: "HOLD", evResume: "RESUME", evErrorTone: "ERROR_TONE", evTimeout: "TIMEOUT",
}

type phoneNames struct{}

func (phoneNames) StateName(id hfsm.StateID) string {
	if n, ok := stateNames[id]; ok {
		return n
	}
	return id.String()
}

func (phoneNames) EventName(id hfsm.EventID) string {
	if n, ok := eventNames[id]; ok {
		return n
	}
	return id.String()
}

// line is the per-subscriber context every callback receives.
type line struct {
	id      string
	digits  []string
	busy    bool
	timeout *extensibility.Timeout
	dial    time.Duration
	log     *slog.Logger
}

func newLine(id string, dial time.Duration, busy bool, log *slog.Logger) *line {
	return &line{
		id:      id,
		busy:    busy,
		timeout: extensibility.NewTimeout(hfsm.EventTimeout, nil),
		dial:    dial,
		log:     log.With(slog.String("line", id)),
	}
}

func (l *line) number() string { return strings.Join(l.digits, "") }

func startDialTone(l *line) {
	l.digits = l.digits[:0]
	l.timeout.Reset(l.dial)
	l.log.Debug("dial tone")
}

func stopTimer(l *line) { l.timeout.Cancel() }

func armOriginate(l *line) { l.timeout.Reset(4 * l.dial) }

func playError(l *line) { l.log.Info("error tone") }

func collectDigit(l *line, msg any) bool {
	d, ok := msg.(string)
	if !ok || len(d) != 1 || d[0] < '0' || d[0] > '9' {
		return false
	}
	l.digits = append(l.digits, d)
	l.timeout.Reset(l.dial)
	return true
}

func hasDigits(l *line, _ any) bool { return len(l.digits) > 0 }

func noDigits(l *line, _ any) bool { return len(l.digits) == 0 }

// connect fails when the far end is busy, which sends the call through the
// catch transition on ORIGINATING.
func connect(l *line, _ any) bool {
	if l.busy {
		return false
	}
	l.log.Info("connected", slog.String("number", l.number()))
	return true
}

func release(l *line, _ any) bool {
	l.log.Info("trunk released", slog.String("number", l.number()))
	return true
}

func hangUp(l *line, _ any) bool {
	l.digits = l.digits[:0]
	return true
}

// phoneGraph builds the subscriber line: plain call handling at the top
// level, an ORIGINATING complex state that walks an outgoing call through
// trunk signalling, and a HELD substate pushed onto TALKING.
func phoneGraph(log *slog.Logger) (*hfsm.Graph[*line, any], error) {
	b := hfsm.NewBuilder[*line, any](hfsm.WithLogger(log), hfsm.WithStrictTargets())

	// The builder records every rejected call and Build reports them all,
	// so the individual errors are not checked here.
	s, _ := b.AddState(idle, nil, nil)
	_ = s.AddTransition(evOffHook, nil, dialing)
	_ = s.AddTransition(evRing, nil, ringing)
	_ = s.AddTransition(evOnHook, nil, hfsm.StateSame)

	s, _ = b.AddState(ringing, nil, nil)
	_ = s.AddTransition(evOffHook, nil, talking, connect)

	s, _ = b.AddState(talking, nil, nil)
	_ = s.AddSubTransition(evHold, nil, held)

	s, _ = b.AddState(held, nil, nil)
	_ = s.AddTransition(evResume, nil, hfsm.StateParent)

	s, _ = b.AddState(dialing, startDialTone, stopTimer)
	_ = s.AddTransition(evDigit, nil, hfsm.StateSame, collectDigit)
	_ = s.AddTransition(evTimeout, noDigits, errorTone)
	_ = s.AddTransition(evTimeout, hasDigits, originating)

	s, _ = b.AddState(errorTone, playError, nil)
	_ = s.AddTransition(evOnHook, nil, idle, hangUp)

	s, _ = b.AddComplexState(originating, seize, armOriginate, stopTimer)
	_ = s.AddTransition(evAnswer, nil, talking, connect)
	_ = s.AddTransition(evTimeout, nil, errorTone)
	_ = s.AddCatchTransition(errorTone, release)

	s, _ = b.AddState(seize, nil, nil)
	_ = s.AddTransition(evSeized, nil, outpulse)

	s, _ = b.AddState(outpulse, nil, nil)
	_ = s.AddTransition(evOutpulsed, nil, alerting)

	_, _ = b.AddState(alerting, nil, nil)

	a := b.AnyState()
	_ = a.AddTransition(evOnHook, nil, idle, hangUp)
	_ = a.AddTransition(evErrorTone, nil, errorTone)

	return b.Build()
}
