package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfers",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "number of entries to show")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		limit = defaultHistoryLimit
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	j := openJournal(c)
	if j == nil {
		return fmt.Errorf("transfer journal unavailable")
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		statusf("No transfers recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Detail
		if e.Status == "completed" {
			detail = ""
		}

		rows = append(rows, []string{
			formatTime(e.FinishedAt.Local()),
			e.Direction,
			e.FileName,
			formatSize(e.Bytes),
			e.Status,
			detail,
		})
	}

	printTable(os.Stdout,
		[]string{"FINISHED", "DIRECTION", "NAME", "SIZE", "STATUS", "DETAIL"},
		rows)

	return nil
}
