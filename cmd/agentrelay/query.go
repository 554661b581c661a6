package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rundex/agentrelay/core"
)

func newQueryCmd() *cobra.Command {
	var (
		configPath     string
		conversationID string
		verbose        bool
		stream         bool
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Send one query through the orchestrator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, configPath, strings.Join(args, " "), conversationID, verbose, stream)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agents.json", "path to agent config file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to continue (default: new conversation)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the execution trace")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream events as they happen")
	return cmd
}

func runQuery(cmd *cobra.Command, configPath, query, conversationID string, verbose, stream bool) error {
	rt, _, err := buildRuntime(configPath, nil)
	if err != nil {
		return fmt.Errorf("load runtime: %w", err)
	}
	out := cmd.OutOrStdout()

	if stream {
		ch, _, err := rt.StreamQuery(cmd.Context(), query, conversationID)
		if err != nil {
			return err
		}
		for ev := range ch.Events() {
			switch v := ev.(type) {
			case core.TokenChunk:
				fmt.Fprint(out, v.Text)
			case core.AgentCallStarted:
				fmt.Fprintf(out, "[calling %s]\n", v.AgentID)
			case core.AgentCallCompleted:
				if v.Error != "" {
					fmt.Fprintf(out, "[%s failed: %s]\n", v.AgentID, v.Error)
				} else {
					fmt.Fprintf(out, "[%s answered]\n", v.AgentID)
				}
			case core.Done:
				fmt.Fprintf(out, "\n\nAgents used: %s\n", strings.Join(v.AgentsUsed, ", "))
			case core.ErrorEvent:
				return fmt.Errorf("%s", v.Message)
			}
		}
		return nil
	}

	reply, err := rt.ProcessQuery(cmd.Context(), query, conversationID, verbose)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, reply.Content)
	fmt.Fprintf(out, "\nAgents used: %s\n", strings.Join(reply.AgentsUsed, ", "))
	if verbose {
		for _, entry := range reply.ExecutionTrace {
			if entry.Error != "" {
				fmt.Fprintf(out, "  %s: ERROR %s\n", entry.AgentID, entry.Error)
			} else {
				fmt.Fprintf(out, "  %s: %s\n", entry.AgentID, entry.Response)
			}
		}
	}
	return nil
}
