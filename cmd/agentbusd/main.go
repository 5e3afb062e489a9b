// Command agentbusd hosts one Runtime for a single process: it loads
// configuration, bootstraps logging and tracing, wires an optional NATS
// ingress adapter, and runs until a termination signal arrives.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/frame"
	"github.com/agentbus/core/pkg/ingress"
	"github.com/agentbus/core/pkg/logger"
	"github.com/agentbus/core/pkg/producer"
	"github.com/agentbus/core/pkg/runtime"
	"github.com/agentbus/core/pkg/telemetry"
)

// hostConfig layers agentbusd's host-process settings on top of the
// library's runtime.Config, the same pattern the worker-service template
// uses for its own NatsURL field.
type hostConfig struct {
	runtime.Config
	NatsURL       string `env:"NATS_URL" env-default:"nats://localhost:4222"`
	IngressTopic  string `env:"INGRESS_TOPIC" env-default:"agentbus.enqueue"`
	EnableIngress bool   `env:"ENABLE_INGRESS" env-default:"false"`
	SyntheticLoad bool   `env:"SYNTHETIC_LOAD" env-default:"false"`
}

// logDispatcher is the default Dispatcher: it logs every delivered
// message. A real deployment supplies its own Dispatcher implementing
// the actual agent logic (security scanning, ML inference, and so on —
// explicitly out of scope for this core, spec §1).
type logDispatcher struct {
	performance *logDispatcherPath
	efficiency  *logDispatcherPath
}

type logDispatcherPath struct{ log func(string, ...any) }

func newLogDispatcher() *logDispatcher {
	return &logDispatcher{
		performance: &logDispatcherPath{log: logger.Component("dispatch.performance").Info},
		efficiency:  &logDispatcherPath{log: logger.Component("dispatch.efficiency").Info},
	}
}

func (d *logDispatcher) DispatchPerformance(h frame.Header, payload []byte) {
	d.performance.log("dispatched", "type", h.Type, "bytes", len(payload))
}

func (d *logDispatcher) DispatchEfficiency(h frame.Header, payload []byte) {
	d.efficiency.log("dispatched", "type", h.Type, "bytes", len(payload))
}

func main() {
	var cfg hostConfig
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Logger)
	l := logger.Component("agentbusd")

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		l.Warn("telemetry disabled: failed to initialize", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer shutdownTelemetry(context.Background())

	if cfg.SyntheticLoad && len(cfg.ProducerSources) == 0 {
		sources := make([]producer.Source, cfg.NumProducers)
		for i := range sources {
			sources[i] = producer.SequenceSource(uint32(i), 0, 256, uint64(i)*1_000_000_000, 1<<62)
		}
		cfg.ProducerSources = sources
	}

	rt, err := runtime.New(cfg.Config, newLogDispatcher())
	if err != nil {
		l.Error("failed to construct runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		l.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}

	if cfg.EnableIngress {
		bus, err := ingress.NewNats(cfg.NatsURL)
		if err != nil {
			l.Error("failed to connect to nats, ingress disabled", "error", err)
		} else {
			defer bus.Close()
			if err := ingress.Bridge(ctx, bus, cfg.IngressTopic, rt); err != nil {
				l.Error("failed to subscribe ingress bridge", "error", err)
			}
		}
	}

	l.Info("agentbusd started", "num_producers", cfg.NumProducers, "num_workers", cfg.NumWorkers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("agentbusd shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := rt.Stop(stopCtx); err != nil {
		l.Error("runtime did not stop cleanly", "error", err)
	}
}
