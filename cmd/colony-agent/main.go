package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"example.com/colony-brain/internal/agent"
	"example.com/colony-brain/internal/logging"
	"example.com/colony-brain/internal/scenario"
)

func main() {
	configPath := flag.String("config", "", "path to agent config (defaults to $"+agent.ConfigPathEnv+")")
	scenarioPath := flag.String("scenario", "", "override the scenario path from the config")
	flag.Parse()

	boot := logging.New(os.Stderr, "text", "info")
	cfgPath := agent.ResolveConfigPath(*configPath)
	cfg, err := agent.LoadConfig(cfgPath)
	if err != nil {
		boot.Error("failed to load config", "path", cfgPath, "err", err)
		os.Exit(1)
	}
	if *scenarioPath != "" {
		cfg.ScenarioPath = *scenarioPath
	}
	log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	spec, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		log.Error("failed to load scenario", "path", cfg.ScenarioPath, "err", err)
		os.Exit(1)
	}
	def, err := spec.LoadTrees(cfg.ScenarioPath)
	if err != nil {
		log.Error("failed to load behavior trees", "path", spec.TreesPath(cfg.ScenarioPath), "err", err)
		os.Exit(1)
	}
	engine, err := agent.NewAgentEngine(cfg, spec, def, log)
	if err != nil {
		log.Error("failed to build agent", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("agent started", "agent", cfg.AgentID, "animals", len(spec.Animals), "tick", cfg.TickInterval)
	engine.Start(ctx)
	log.Info("agent stopped")
}
