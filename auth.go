package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fileflow/fileflow-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate and save a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}

	cmd.Flags().String("password", "", "password (prompted when omitted)")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegister,
	}

	cmd.Flags().String("password", "", "password (prompted when omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the saved session",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user",
		RunE:  runWhoami,
	}
}

// readPassword returns the --password flag value or prompts on stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}

	// Prompts must always be visible — not suppressed by --quiet.
	fmt.Fprint(os.Stderr, "Password: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password = strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}

	return password, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := args[0]

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if _, err := c.auth.Login(cmd.Context(), username, password); err != nil {
		return err
	}

	statusf("Logged in as %s.\n", username)

	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	username := args[0]

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	message, err := c.auth.Register(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	statusf("%s\n", message)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	c, err := buildClients()
	if err != nil {
		return err
	}

	c.auth.Logout()
	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Username  string `json:"username"`
	IssuedAt  string `json:"issued_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	cur := c.sessions.Get()

	out := whoamiOutput{Username: cur.Identity}

	// Claims are display-only extras; a token the client cannot decode
	// still identifies the user through the stored identity.
	if claims, err := session.DecodeClaims(cur.Credential); err == nil {
		if !claims.IssuedAt.IsZero() {
			out.IssuedAt = formatTime(claims.IssuedAt)
		}

		if !claims.ExpiresAt.IsZero() {
			out.ExpiresAt = formatTime(claims.ExpiresAt)
		}
	} else {
		c.logger.Debug("token claims not decodable", "error", err)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Printf("Logged in as %s\n", out.Username)

	if out.ExpiresAt != "" {
		fmt.Printf("Session expires %s\n", out.ExpiresAt)
	}

	return nil
}
