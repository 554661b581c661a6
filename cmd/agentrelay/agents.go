package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rundex/agentrelay/config"
)

func newAgentsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the configured agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgents(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agents.json", "path to agent config file (.json, .yaml or .yml)")
	return cmd
}

func runAgents(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(cfg.Agents) == 0 {
		fmt.Fprintln(out, "No agents configured.")
		return nil
	}

	for _, a := range cfg.Agents {
		fmt.Fprintf(out, "%s (%s)\n", a.Name, a.ID)
		fmt.Fprintf(out, "    %s\n", a.Description)
		if len(a.Capabilities) > 0 {
			fmt.Fprintf(out, "    Capabilities: %s\n", strings.Join(a.Capabilities, ", "))
		}
		fmt.Fprintf(out, "    Endpoint: %s\n", a.Endpoint)
	}
	return nil
}
