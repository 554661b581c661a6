package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rundex/agentrelay/metrics"
	"github.com/rundex/agentrelay/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the runtime HTTP server",
		Long:  "Serves the runtime API: POST /api/query (SSE when stream is set), POST /api/group-chat, GET /api/agents, GET /api/conversations/{id}, POST /api/cancel/{id}, /health and /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agents.json", "path to agent config file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	rt, cfg, err := buildRuntime(configPath, metrics.NewPrometheusRecorder())
	if err != nil {
		return fmt.Errorf("load runtime: %w", err)
	}

	if addr == "" {
		addr = cfg.Runtime.ListenAddr
	}

	srv := server.New(rt, func(o *server.Options) {
		o.Verbose = cfg.Runtime.Verbose
	})

	fmt.Fprintf(cmd.OutOrStdout(), "agentrelay listening on %s (%d agents)\n", addr, len(cfg.Agents))
	return srv.Start(addr)
}
