// Package app wires configuration, a connected Subscriber, Prometheus
// instrumentation, and the terminal monitor view into a single run.
package app

import (
	"context"
	"fmt"

	"github.com/nats-io/nuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rivo/tview"

	"github.com/nats-lite/gonats-core/internal/config"
	"github.com/nats-lite/gonats-core/internal/metrics"
	"github.com/nats-lite/gonats-core/internal/monitor"
	"github.com/nats-lite/gonats-core/internal/subscriber"
)

// Options carries the resolved settings a Run call needs; cmd/gonats-sub
// fills this in from flags before calling Run.
type Options struct {
	ServerURL   string
	ConfigPath  string
	Subject     string
	Queue       string
	MetricsAddr string // empty disables the /metrics HTTP server
}

// Run loads configuration, connects a Subscriber, optionally serves
// Prometheus metrics, subscribes to Subject, and drives the terminal
// monitor view until the user quits.
func Run(opts Options) error {
	cfg, err := config.Load(opts.ConfigPath, opts.ServerURL)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connOpts, err := config.FromContext(cfg.CurrentContext(), "gonats-sub", nil)
	if err != nil {
		return fmt.Errorf("failed to resolve connection options: %w", err)
	}

	rec := metrics.New(prometheus.DefaultRegisterer)
	if opts.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(opts.MetricsAddr); err != nil {
				fmt.Printf("metrics server stopped: %v\n", err)
			}
		}()
	}

	sub := subscriber.New(cfg.CurrentContextName(), rec)
	if err := sub.Connect(context.Background(), connOpts); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer sub.Disconnect()

	sid := nuid.Next()
	if err := sub.Subscribe(opts.Subject, opts.Queue, sid); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe(sid, 0)

	tviewApp := tview.NewApplication()
	view := monitor.New(tviewApp, sub, rec, opts.Subject, sid)
	if err := view.Run(); err != nil {
		return fmt.Errorf("monitor view exited: %w", err)
	}
	return nil
}
