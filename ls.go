package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fileflow/fileflow-go/internal/metadata"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List files by owner or tag",
		Long: `List file metadata. With no flags, lists the logged-in user's own
files. --owner lists another user's files; --tag lists every file
carrying the tag.`,
		Args: cobra.NoArgs,
		RunE: runLs,
	}

	cmd.Flags().String("owner", "", "list files owned by this user")
	cmd.Flags().String("tag", "", "list files carrying this tag")

	return cmd
}

func runLs(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	tag, _ := cmd.Flags().GetString("tag")

	if owner != "" && tag != "" {
		return fmt.Errorf("--owner and --tag are mutually exclusive")
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	ctx := cmd.Context()

	var files []metadata.FileRecord

	switch {
	case tag != "":
		files, err = c.metadata.FilesByTag(ctx, tag)
	case owner != "":
		files, err = c.metadata.FilesByOwner(ctx, owner)
	default:
		files, err = c.metadata.FilesByOwner(ctx, c.sessions.Get().Identity)
	}

	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(files)
	}

	if len(files) == 0 {
		statusf("No files found.\n")
		return nil
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.FileName,
			formatSize(f.FileSize),
			f.Owner,
			f.UploadDate,
			strings.Join(f.Tags, ","),
		})
	}

	printTable(os.Stdout, []string{"ID", "NAME", "SIZE", "OWNER", "UPLOADED", "TAGS"}, rows)

	return nil
}
