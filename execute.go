package hfsm

import (
	"log/slog"
)

// Execute advances os by one event. Active states are searched outermost
// first; within a state, transitions are tried in declaration order and the
// first whose conditions all pass is taken. When no active state matches,
// the ANY-state is tried.
//
// Execute is not safe for concurrent use on the same ObjectState.
func (g *Graph[C, M]) Execute(os *ObjectState, event EventID, ctx C, msg M) Result {
	if g == nil || g.released || event == EventCatch {
		return ResultNoTransition
	}
	if os == nil || !os.valid() {
		g.logger.Error("object state is corrupt", slog.Any("event", event))
		return ResultInternalFailure
	}

	var (
		t          *Transition[C, M]
		res        = ResultNoTransition
		matchDepth int
	)
	for depth := 0; depth <= os.NestDepth; depth++ {
		id := os.NestedStateIDs[depth]
		s, ok := g.State(id)
		if !ok {
			g.logger.Debug("active state not in graph",
				slog.Any("state", id), slog.Int("depth", depth), slog.Any("event", event))
			return ResultNoTransition
		}
		if res, t = g.executeState(s, event, ctx, msg); t != nil {
			matchDepth = depth
			break
		}
	}
	if t == nil && g.any != nil {
		res, t = g.executeState(g.any, event, ctx, msg)
	}
	if t == nil {
		g.logger.Debug("no transition", slog.Any("state", os.Current()), slog.Any("event", event))
		return ResultNoTransition
	}
	if res != ResultNewState {
		return res
	}

	os.PreviousStateID = os.NestedStateIDs[os.NestDepth]
	if t.subState {
		if os.NestDepth >= MaxNestDepth-1 {
			g.logger.Error("nest depth exceeded", slog.Any("target", t.target), slog.Any("event", event))
			return ResultInternalFailure
		}
		os.NestDepth++
	} else {
		for depth := os.NestDepth; depth >= matchDepth; depth-- {
			if s, ok := g.State(os.NestedStateIDs[depth]); ok && s.exit != nil {
				s.exit(ctx)
			}
		}
		if t.target == StateParent {
			if os.NestDepth > 0 {
				os.NestDepth--
			}
			return ResultNewState
		}
		os.NestDepth = matchDepth
	}
	return g.enter(os, t.target, ctx)
}

// Start resets os to the top-level state start and runs its Entry, descending
// through initial substates the same way a transition into start would.
func (g *Graph[C, M]) Start(os *ObjectState, start StateID, ctx C) Result {
	if g == nil || g.released || os == nil {
		return ResultInternalFailure
	}
	os.SetStartState(start, StateSame)
	return g.enter(os, start, ctx)
}

// executeState finds the first matching transition on s and runs it. On an
// action failure the state's catch transition, if any, runs in its place. A
// nil transition means nothing matched.
func (g *Graph[C, M]) executeState(s *State[C, M], event EventID, ctx C, msg M) (Result, *Transition[C, M]) {
	for i := range s.transitions {
		t := &s.transitions[i]
		if t.event != event || !t.passes(ctx, msg) {
			continue
		}
		if runActions(t, ctx, msg) {
			return settled(t), t
		}
		if s.id == StateAny {
			g.logger.Debug("action failed", slog.Any("state", s.id), slog.Any("event", event))
			return ResultActionFailure, t
		}
		c := s.catch()
		if c == nil {
			g.logger.Debug("action failed", slog.Any("state", s.id), slog.Any("event", event))
			return ResultActionFailure, t
		}
		g.logger.Debug("action failed, taking catch transition",
			slog.Any("state", s.id), slog.Any("event", event), slog.Any("target", c.target))
		runActions(c, ctx, msg)
		return settled(c), c
	}
	return ResultNoTransition, nil
}

// runActions runs t's actions in order and reports whether all succeeded.
// Regular transitions stop at the first failure; catch transitions run every
// action regardless.
func runActions[C, M any](t *Transition[C, M], ctx C, msg M) bool {
	ok := true
	for _, a := range t.actions {
		if a(ctx, msg) {
			continue
		}
		ok = false
		if !t.IsCatch() {
			break
		}
	}
	return ok
}

func settled[C, M any](t *Transition[C, M]) Result {
	if t.target == StateSame {
		return ResultNoChange
	}
	return ResultNewState
}

// enter writes id at the current depth, runs its Entry and follows initial
// substates down.
func (g *Graph[C, M]) enter(os *ObjectState, id StateID, ctx C) Result {
	for {
		os.NestedStateIDs[os.NestDepth] = id
		s, ok := g.State(id)
		if !ok {
			g.logger.Warn("entered state not in graph", slog.Any("state", id), slog.Int("depth", os.NestDepth))
			return ResultNewState
		}
		if s.entry != nil {
			s.entry(ctx)
		}
		if !s.complex || s.initial == StateSame {
			return ResultNewState
		}
		if os.NestDepth >= MaxNestDepth-1 {
			g.logger.Error("nest depth exceeded", slog.Any("state", id), slog.Any("initial", s.initial))
			return ResultInternalFailure
		}
		os.NestDepth++
		id = s.initial
	}
}
