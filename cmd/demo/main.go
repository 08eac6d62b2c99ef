// Command demo runs a small telephone exchange: each subscriber line is an
// entity driven through the same call-handling graph by a scripted caller.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/config"
	"github.com/comalice/hfsm/internal/core"
	"github.com/comalice/hfsm/internal/logger"
	"github.com/comalice/hfsm/internal/production"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Runtime
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, err := phoneGraph(log.With(slog.String("component", "engine")))
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	defer g.Destroy()
	for _, issue := range g.Violations() {
		log.Warn("graph check", slog.String("state", phoneNames{}.StateName(issue.State)), slog.String("issue", issue.Kind.String()))
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	fleet := core.NewFleet(g, idle,
		core.WithPersister(store),
		core.WithPublisher(production.NewLogPublisher(log, phoneNames{})),
		core.WithQueueSize(cfg.QueueSize),
		core.WithLogger(log),
	)
	defer fleet.StopAll()

	lines := make([]*line, cfg.Entities)
	for i := range lines {
		id := fmt.Sprintf("line-%d", i)
		l := newLine(id, cfg.DialTimeout, i%4 == 3, log)
		defer l.timeout.Stop()
		if _, err := fleet.Spawn(ctx, l, core.WithEntityID(id), core.WithEventSource(l.timeout)); err != nil {
			return fmt.Errorf("spawn %s: %w", id, err)
		}
		lines[i] = l
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, l := range lines {
		m, _ := fleet.Get(l.id)
		eg.Go(func() error { return call(ctx, m, scripts[i%len(scripts)], cfg.DialTimeout) })
	}
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	viz := &production.DefaultVisualizer{}
	for _, id := range fleet.IDs() {
		m, _ := fleet.Get(id)
		st := m.State()
		log.Info("final state", logger.Entity(id), logger.Stack(st))
		if id == "line-0" {
			fmt.Println(viz.ExportDOT(g.Topology(), phoneNames{}, st.Active()))
		}
	}
	return nil
}

func newLogger(cfg config.Runtime) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithLevel(level),
		logger.WithOutput(os.Stderr),
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...), nil
}

func openStore(ctx context.Context, cfg config.Runtime) (core.Persister, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreJSON:
		p, err := production.NewJSONPersister(cfg.Store.Dir)
		return p, func() {}, err
	case config.StoreYAML:
		p, err := production.NewYAMLPersister(cfg.Store.Dir)
		return p, func() {}, err
	case config.StoreRedis:
		client, err := production.ConnectRedis(ctx, production.RedisConfig{
			URL:           cfg.Redis.URL,
			RetryAttempts: cfg.Redis.RetryCount,
			RetryInterval: cfg.Redis.RetryDelay,
		})
		if err != nil {
			return nil, nil, err
		}
		return production.NewRedisPersister(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		pool, err := production.ConnectPostgres(ctx, cfg.DatabaseURL, 3, time.Second)
		if err != nil {
			return nil, nil, err
		}
		p := production.NewPostgresPersister(pool, "")
		if err := p.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return p, pool.Close, nil
	default:
		return production.NewMemoryPersister(), func() {}, nil
	}
}

// step is one thing a caller does. A step with wait set lets the dial
// timeout expire instead of dispatching.
type step struct {
	event hfsm.EventID
	msg   any
	wait  bool
}

var scripts = [][]step{
	// Outgoing call answered, put on hold, then hung up.
	{
		{event: evOffHook}, {event: evDigit, msg: "4"}, {event: evDigit, msg: "2"}, {wait: true},
		{event: evSeized}, {event: evOutpulsed}, {event: evAnswer},
		{event: evHold}, {event: evResume}, {event: evOnHook},
	},
	// Caller never dials.
	{{event: evOffHook}, {wait: true}, {event: evOnHook}},
	// Incoming call interrupted by the exchange.
	{{event: evRing}, {event: evOffHook}, {event: evErrorTone}, {event: evOnHook}},
	// Far end busy: the failed ANSWER is caught and the trunk released.
	{{event: evOffHook}, {event: evDigit, msg: "7"}, {wait: true}, {event: evSeized}, {event: evAnswer}},
}

func call(ctx context.Context, m *core.Machine[*line, any], script []step, dial time.Duration) error {
	for _, s := range script {
		if s.wait {
			select {
			case <-time.After(2 * dial):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := m.Dispatch(ctx, s.event, s.msg); err != nil {
			return fmt.Errorf("%s: %w", m.ID(), err)
		}
	}
	return nil
}
