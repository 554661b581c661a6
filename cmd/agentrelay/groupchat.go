package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGroupChatCmd() *cobra.Command {
	var (
		configPath     string
		agentIDs       []string
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "group-chat [text]",
		Short: "Broadcast one query to an explicit set of agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupChat(cmd, configPath, strings.Join(args, " "), agentIDs, conversationID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agents.json", "path to agent config file (.json, .yaml or .yml)")
	cmd.Flags().StringSliceVar(&agentIDs, "agents", nil, "ordered agent ids to address (required)")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to continue (default: new conversation)")
	_ = cmd.MarkFlagRequired("agents")
	return cmd
}

func runGroupChat(cmd *cobra.Command, configPath, query string, agentIDs []string, conversationID string) error {
	rt, _, err := buildRuntime(configPath, nil)
	if err != nil {
		return fmt.Errorf("load runtime: %w", err)
	}

	reply, err := rt.ProcessGroupChat(cmd.Context(), query, agentIDs, conversationID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Content)
	fmt.Fprintf(out, "\nAgents used: %s\n", strings.Join(reply.AgentsUsed, ", "))
	return nil
}
