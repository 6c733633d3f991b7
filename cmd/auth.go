package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joescharf/tracker/internal/output"
)

var (
	authEmail        string
	authPasswordFile string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signupRun(cmd.Context())
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with email and password. The session is saved under state_dir
and shared by every tracker command until 'tracker logout'.

Without --password-file the password is prompted for on the terminal.
Use --password-file - to read it from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(cmd.Context())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun(cmd.Context())
	},
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email (required)")
		c.Flags().StringVar(&authPasswordFile, "password-file", "", "Read the password from a file (- for stdin)")
		_ = c.MarkFlagRequired("email")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func signupRun(ctx context.Context) error {
	password, err := readPassword()
	if err != nil {
		return err
	}
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create account %s", authEmail)
		return nil
	}
	u, err := p.SignUp(ctx, authEmail, password)
	if err != nil {
		return err
	}
	ui.Success("Signed up and signed in as %s", output.Cyan(u.Email))
	return nil
}

func loginRun(ctx context.Context) error {
	password, err := readPassword()
	if err != nil {
		return err
	}
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	u, err := p.SignIn(ctx, authEmail, password)
	if err != nil {
		return err
	}
	ui.Success("Signed in as %s", output.Cyan(u.Email))
	return nil
}

func logoutRun(ctx context.Context) error {
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	u := p.CurrentUser()
	if u == nil {
		ui.Info("Not signed in.")
		return nil
	}
	if err := p.SignOut(ctx); err != nil {
		return err
	}
	ui.Success("Signed out %s", u.Email)
	return nil
}

func whoamiRun(ctx context.Context) error {
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	u := p.CurrentUser()
	if u == nil {
		ui.Info("Not signed in.")
		return nil
	}
	fmt.Fprintf(ui.Out, "%s\n", u.Email)
	ui.VerboseLog("user id %s", u.ID)
	return nil
}

// readPassword reads the password from --password-file, stdin ("-"), or an
// echo-free terminal prompt.
func readPassword() (string, error) {
	switch authPasswordFile {
	case "":
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("no terminal available for the password prompt (use --password-file)")
		}
		fmt.Fprint(ui.ErrOut, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.ErrOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	case "-":
		return readFirstLine(ui.In)
	default:
		f, err := os.Open(authPasswordFile)
		if err != nil {
			return "", fmt.Errorf("open password file: %w", err)
		}
		defer f.Close()
		return readFirstLine(f)
	}
}

func readFirstLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
