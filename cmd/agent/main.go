// Command agent runs one MQTT-connected task-processing agent: it loads a
// YAML config file named on the command line (or AGENT_CONFIG, or
// config/agent.yaml as a last resort), wires the transport, processor,
// orchestrator, registry, and router together, and blocks until it
// receives SIGINT or SIGTERM.
//
// Called by: operators or a process supervisor launching one agent instance.
// Calls: every internal package this module ships.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenzoki/agen/mqttagent/internal/config"
	"github.com/tenzoki/agen/mqttagent/internal/health"
	"github.com/tenzoki/agen/mqttagent/internal/llm"
	"github.com/tenzoki/agen/mqttagent/internal/lifecycle"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/metrics"
	"github.com/tenzoki/agen/mqttagent/internal/orchestrator"
	"github.com/tenzoki/agen/mqttagent/internal/processor"
	"github.com/tenzoki/agen/mqttagent/internal/progress"
	"github.com/tenzoki/agen/mqttagent/internal/registry"
	"github.com/tenzoki/agen/mqttagent/internal/router"
	"github.com/tenzoki/agen/mqttagent/internal/tools"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

func main() {
	configFile := resolveConfigFile()
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("agent: failed to load config from %s: %v", configFile, err)
	}

	if cfg.Agent.ID == "" {
		log.Fatalf("agent: config %s has no agent.id set", configFile)
	}

	logger := logging.New("agent", cfg.Agent.ID, cfg.Debug)
	logger.Info("starting agent using config %s", configFile)

	ctrs := metrics.New()
	tp := transport.NewSupervisor(cfg.MQTT, cfg.Agent.ID, logger.With("transport"), transport.DefaultReconnectConfig(), ctrs)

	reg := registry.New()
	disc := registry.NewDiscovery(reg, logger.With("registry"))

	// No real LLM provider or tool system ships with this module; operators
	// wanting live completions substitute their own llm.Provider and
	// tools.System implementations here.
	provider := llm.NewMockProvider(llm.CompletionResponse{Content: "no provider configured"})
	toolSystem := tools.NewMockSystem()

	reporter := progress.NewMQTTReporter(cfg.Agent.ID, tp, logger.With("progress"))

	proc := processor.New(processor.Config{
		MaxPipelineDepth:  cfg.Limits.MaxPipelineDepth,
		MaxTaskCache:      cfg.Limits.MaxTaskCache,
		MaxToolIterations: cfg.Limits.MaxToolIterations,
	}, cfg.Agent.ID, provider, toolSystem, logger.With("processor"), reporter)

	rtr := buildRouter(cfg.Router, reg)

	orc := orchestrator.New(orchestrator.Config{
		IntakeBufferSize: cfg.Limits.IntakeBufferSize,
		MaxIterations:    cfg.Router.MaxIterations,
	}, cfg.Agent.ID, proc, tp, reg, rtr, logger.With("orchestrator"), ctrs)

	checker := health.New(tp, provider)

	runner := lifecycle.New(cfg.Agent.ID, cfg.Agent.Capabilities, cfg.Agent.Description, cfg.MQTT.HeartbeatInterval(), tp, orc, disc, checker, logger.With("lifecycle"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runner.Run(ctx); err != nil {
		logger.Error("agent exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("agent %s shut down cleanly", cfg.Agent.ID)
}

func buildRouter(cfg config.RouterConfig, reg *registry.Registry) router.Router {
	switch cfg.Kind {
	case "llm":
		return router.NewLLMRouter(reg)
	case "gatekeeper":
		return router.NewGatekeeperRouter(cfg.Gatekeeper)
	default:
		return nil
	}
}

func resolveConfigFile() string {
	if len(os.Args) >= 2 {
		return os.Args[1]
	}
	return config.GetEnvConfig("CONFIG", "config/agent.yaml")
}
