package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/filedrop/filedrop-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate with the vault and save the session",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a new account (does not log in)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignup,
	}

	cmd.Flags().Bool("ops", false, "request a privileged (ops) account")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the current session",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

// readSecret prompts for a password on stderr and reads one line from
// stdin. The prompt always prints, even with --quiet — an invisible
// password prompt is a hung-looking CLI.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	identifier := args[0]

	secret, err := readSecret("Password: ")
	if err != nil {
		return err
	}

	ctrl := newController(nil)

	s, err := ctrl.Login(cmd.Context(), identifier, secret)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	statusf("Logged in as %s.\n", s.Identifier)

	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	identifier := args[0]

	privileged, err := cmd.Flags().GetBool("ops")
	if err != nil {
		return fmt.Errorf("reading --ops flag: %w", err)
	}

	secret, err := readSecret("Password: ")
	if err != nil {
		return err
	}

	role := session.RoleStandard
	if privileged {
		role = session.RolePrivileged
	}

	ctrl := newController(nil)

	if err := ctrl.Signup(cmd.Context(), identifier, secret, role); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	statusf("Account created. Run 'filedrop login %s' to sign in.\n", identifier)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	ctrl := newController(nil)
	ctrl.Logout()

	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Identifier    string `json:"identifier"`
	Role          string `json:"role"`
	EstablishedAt string `json:"established_at,omitempty"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	ctrl := newController(nil)

	s := ctrl.CurrentSession()
	if s == nil {
		return fmt.Errorf("not logged in, run 'filedrop login' first")
	}

	if flagJSON {
		out := whoamiOutput{
			Identifier: s.Identifier,
			Role:       string(s.Role),
		}
		if !s.EstablishedAt.IsZero() {
			out.EstablishedAt = s.EstablishedAt.Format(time.RFC3339)
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Printf("Logged in as %s (%s)\n", s.Identifier, s.Role)

	if !s.EstablishedAt.IsZero() {
		fmt.Printf("Session established %s\n", formatTime(s.EstablishedAt))
	}

	return nil
}
