package main

import (
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/rundex/agentrelay"
	"github.com/rundex/agentrelay/agent"
	"github.com/rundex/agentrelay/config"
	"github.com/rundex/agentrelay/engine"
	"github.com/rundex/agentrelay/logging"
	"github.com/rundex/agentrelay/metrics"
	"github.com/rundex/agentrelay/model"
	"github.com/rundex/agentrelay/model/anthropic"
	"github.com/rundex/agentrelay/model/openai"
)

// buildRuntime wires a Runtime from a config file: catalog, decision model,
// logger and agent client, all per the configured runtime settings.
func buildRuntime(configPath string, recorder metrics.Recorder) (*agentrelay.Runtime, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	cat, err := cfg.BuildCatalog()
	if err != nil {
		return nil, nil, err
	}

	var m model.Model
	switch cfg.Runtime.Provider {
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Runtime.Model != "" {
				o.Model = sdk.Model(cfg.Runtime.Model)
			}
		})
	case "keyword":
		m = model.NewKeywordModel(cat.Routes(), cfg.Runtime.MaxFallbackAgents)
	default:
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Runtime.Model != "" {
				o.Model = cfg.Runtime.Model
			}
		})
	}

	logger := logging.NewSlogLogger(logLevel(cfg.Runtime.LogLevel), cfg.Runtime.LogFormat, false)
	if recorder == nil {
		recorder = metrics.NoOpRecorder{}
	}

	timeout := cfg.Runtime.AgentTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rt := agentrelay.New(cat, m, func(o *agentrelay.Options) {
		o.EngineConfig = engine.Config{
			MaxDecisionRounds:        cfg.Runtime.MaxDecisionRounds,
			MaxConcurrentInvocations: engine.DefaultConfig.MaxConcurrentInvocations,
			EventBufferSize:          engine.DefaultConfig.EventBufferSize,
			PublishTimeout:           engine.DefaultConfig.PublishTimeout,
			MaxFallbackAgents:        cfg.Runtime.MaxFallbackAgents,
		}
		o.Invoker = agent.New(func(ao *agent.Options) {
			ao.Timeout = timeout
			ao.Logger = logger
			ao.Recorder = recorder
		})
		o.Logger = logger
		o.Recorder = recorder
	})
	return rt, cfg, nil
}

func logLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
