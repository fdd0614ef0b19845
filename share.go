package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fileflow/fileflow-go/internal/metadata"
)

func newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <file-id> <username>",
		Short: "Share a file with another user",
		Args:  cobra.ExactArgs(2),
		RunE:  runShare,
	}
}

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <file-id> <username>",
		Short: "Revoke a file share",
		Args:  cobra.ExactArgs(2),
		RunE:  runRevoke,
	}
}

func newSharesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "List shares involving the logged-in user",
		Args:  cobra.NoArgs,
		RunE:  runShares,
	}

	cmd.Flags().Bool("by-me", false, "list only shares granted by me")
	cmd.Flags().Bool("with-me", false, "list only shares granted to me")

	return cmd
}

func runShare(cmd *cobra.Command, args []string) error {
	fileID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid file ID %q", args[0])
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	ok, err := c.metadata.Share(cmd.Context(), fileID, args[1])
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("share was not granted")
	}

	statusf("Shared file %d with %s\n", fileID, args[1])

	return nil
}

func runRevoke(cmd *cobra.Command, args []string) error {
	fileID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid file ID %q", args[0])
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	ok, err := c.metadata.RevokeShare(cmd.Context(), fileID, args[1])
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("share was not revoked")
	}

	statusf("Revoked share of file %d with %s\n", fileID, args[1])

	return nil
}

// sharesOutput is the JSON schema for `shares --json`.
type sharesOutput struct {
	ByMe   []metadata.ShareRecord `json:"by_me,omitempty"`
	WithMe []metadata.ShareRecord `json:"with_me,omitempty"`
}

func runShares(cmd *cobra.Command, _ []string) error {
	byMe, _ := cmd.Flags().GetBool("by-me")
	withMe, _ := cmd.Flags().GetBool("with-me")

	// No filter means both directions.
	if !byMe && !withMe {
		byMe, withMe = true, true
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	ctx := cmd.Context()

	var out sharesOutput

	if byMe {
		out.ByMe, err = c.metadata.SharedByMe(ctx)
		if err != nil {
			return err
		}
	}

	if withMe {
		out.WithMe, err = c.metadata.SharedWithMe(ctx)
		if err != nil {
			return err
		}
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(out.ByMe) == 0 && len(out.WithMe) == 0 {
		statusf("No shares found.\n")
		return nil
	}

	rows := make([][]string, 0, len(out.ByMe)+len(out.WithMe))

	for _, s := range out.ByMe {
		rows = append(rows, shareRow("by me", s))
	}

	for _, s := range out.WithMe {
		rows = append(rows, shareRow("with me", s))
	}

	printTable(os.Stdout,
		[]string{"DIRECTION", "FILE ID", "NAME", "FROM", "TO", "SHARED"},
		rows)

	return nil
}

func shareRow(direction string, s metadata.ShareRecord) []string {
	return []string{
		direction,
		strconv.FormatInt(s.File.ID, 10),
		s.File.FileName,
		s.SharedByUsername,
		s.SharedWithUsername,
		s.SharedDate,
	}
}
