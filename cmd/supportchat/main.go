// Command supportchat is a terminal host for the support assistant auth core.
// Session state persists between invocations in the sealed store under
// SUPPORTCHAT_DATA_DIR.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/supportchat/internal/auth/app"
	"github.com/aussiebroadwan/supportchat/internal/auth/vault"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

const usage = `usage: supportchat [flags] <command> [args]

commands:
  status                      show the restored session
  login <email>               sign in with password (and one-time code)
  logout                      sign out, keeping biometric login
  validate                    run the pre-request session check
  me                          refresh and print the profile
  biometric status|enable|disable|login
  change-password             change the password of the signed in user
  forgot <email>              request a password reset email
  reset <token>               set a new password with a reset token

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("supportchat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noBiometric := fs.Bool("no-biometric", false, "treat biometric hardware as unavailable")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "supportchat: %v\n", err)
		return 1
	}

	in := bufio.NewReader(stdin)

	var prompter vault.Prompter
	if !*noBiometric {
		prompter = &terminalPrompter{in: in, out: stdout}
	}

	application, err := app.New(cfg, prompter)
	if err != nil {
		fmt.Fprintf(stderr, "supportchat: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{ctrl: application.Session(), in: in, out: stdout}
	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "supportchat: %s\n", userMessage(err))
		application.Logger().Debug("command failed", "command", fs.Arg(0), "error", err)
		return 1
	}
	return 0
}

// userMessage prefers the taxonomy's user facing text.
func userMessage(err error) string {
	var ae *authsdk.Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return err.Error()
}
