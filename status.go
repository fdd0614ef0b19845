package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe backend service liveness",
		RunE:  runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	Auth     string `json:"auth"`
	Files    string `json:"files"`
	Metadata string `json:"metadata"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, err := buildClients()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	out := statusOutput{
		Auth:     c.prober.Check(ctx, resolvedCfg.AuthURL).String(),
		Files:    c.prober.Check(ctx, resolvedCfg.FileURL).String(),
		Metadata: c.prober.Check(ctx, resolvedCfg.GraphURL).String(),
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	printTable(os.Stdout,
		[]string{"SERVICE", "URL", "STATUS"},
		[][]string{
			{"auth", resolvedCfg.AuthURL, out.Auth},
			{"files", resolvedCfg.FileURL, out.Files},
			{"metadata", resolvedCfg.GraphURL, out.Metadata},
		})

	if out.Auth != "up" || out.Files != "up" || out.Metadata != "up" {
		return fmt.Errorf("one or more services are down")
	}

	return nil
}
