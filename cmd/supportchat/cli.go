package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/session"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

var errUsage = errors.New("usage")

type cli struct {
	ctrl *session.Controller
	in   *bufio.Reader
	out  io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return c.status(ctx)
	case "login":
		if len(args) != 1 {
			return errUsage
		}
		return c.login(ctx, args[0])
	case "logout":
		if err := c.ctrl.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "signed out")
		return nil
	case "validate":
		return c.validate(ctx)
	case "me":
		return c.me(ctx)
	case "biometric":
		if len(args) != 1 {
			return errUsage
		}
		return c.biometric(ctx, args[0])
	case "change-password":
		return c.changePassword(ctx)
	case "forgot":
		if len(args) != 1 {
			return errUsage
		}
		msg, err := c.ctrl.ForgotPassword(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, msg)
		return nil
	case "reset":
		if len(args) != 1 {
			return errUsage
		}
		password, err := c.prompt("new password: ")
		if err != nil {
			return err
		}
		if err := c.ctrl.ResetPassword(ctx, args[0], password); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "password reset, sign in with the new password")
		return nil
	default:
		return errUsage
	}
}

func (c *cli) status(ctx context.Context) error {
	state := c.start(ctx)
	fmt.Fprintf(c.out, "status: %s\n", state.Status())

	switch s := state.(type) {
	case session.Authenticated:
		fmt.Fprintf(c.out, "user: %s\n", s.User.Email)
		if s.PasswordChangeRequired {
			fmt.Fprintln(c.out, "password change required")
		}
	case session.Error:
		fmt.Fprintf(c.out, "error: %s\n", s.Message)
	}

	fmt.Fprintf(c.out, "biometric: %s\n", onOff(c.ctrl.IsBiometricEnabled(ctx)))
	return nil
}

// start runs app-start recovery, printing any security alert raised on the
// way; the final state alone does not show it.
func (c *cli) start(ctx context.Context) session.State {
	cancel := c.ctrl.Subscribe(func(s session.State) {
		if e, ok := s.(session.Error); ok && e.Security {
			fmt.Fprintf(c.out, "security alert: %s\n", e.Message)
		}
	})
	defer cancel()
	return c.ctrl.Start(ctx)
}

func (c *cli) login(ctx context.Context, email string) error {
	password, err := c.prompt("password: ")
	if err != nil {
		return err
	}

	outcome, err := c.ctrl.Login(ctx, email, password)
	for outcome == session.OutcomeAwaitingOTP {
		waiting, ok := c.ctrl.State().(session.AwaitingOTP)
		if !ok {
			break
		}
		if waiting.LastError != "" {
			fmt.Fprintln(c.out, waiting.LastError)
		}

		label := "code from your authenticator app: "
		if waiting.Method == domain.MFAMethodEmail {
			label = "code sent to " + waiting.Email + " (r to resend): "
		}

		code, perr := c.prompt(label)
		if perr != nil {
			return perr
		}

		if code == "r" && waiting.Method == domain.MFAMethodEmail {
			if rerr := c.ctrl.ResendOTP(ctx); rerr != nil {
				fmt.Fprintln(c.out, userMessage(rerr))
			}
			continue
		}

		outcome, err = c.ctrl.CompleteLogin(ctx, code)
	}
	if err != nil {
		return err
	}

	if outcome == session.OutcomePasswordChangeRequired {
		fmt.Fprintln(c.out, "your password must be changed before continuing")
		if err := c.changePasswordFrom(ctx, password); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "signed in as %s\n", c.currentEmail())
	return nil
}

func (c *cli) validate(ctx context.Context) error {
	c.start(ctx)
	if !c.ctrl.ValidateSessionBeforeRequest(ctx) {
		return errors.New("no usable session, sign in again")
	}
	fmt.Fprintln(c.out, "session ok")
	return nil
}

func (c *cli) me(ctx context.Context) error {
	c.start(ctx)
	user, err := c.ctrl.RefreshUserData(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "id: %s\nemail: %s\nname: %s\n", user.ID, user.Email, user.FullName)
	fmt.Fprintf(c.out, "email mfa: %s\ntotp: %s\nbiometric: %s\n",
		onOff(user.EmailMFAEnabled), onOff(user.TOTPEnabled), onOff(user.BiometricMFAEnabled))
	return nil
}

func (c *cli) biometric(ctx context.Context, action string) error {
	switch action {
	case "status":
		a := c.ctrl.CheckBiometricAvailability(ctx)
		fmt.Fprintf(c.out, "available: %t (%s)\nenabled: %t\n", a.Available, a.Kind, c.ctrl.IsBiometricEnabled(ctx))
		return nil

	case "enable":
		c.start(ctx)
		ok, err := c.ctrl.EnableBiometric(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "cancelled")
			return nil
		}
		fmt.Fprintln(c.out, "biometric login enabled")
		return nil

	case "disable":
		c.start(ctx)
		if err := c.ctrl.DisableBiometric(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "biometric login disabled")
		return nil

	case "login":
		ok, err := c.ctrl.LoginWithBiometric(ctx)
		if err != nil {
			if authsdk.KindOf(err) == authsdk.KindSecurityMismatch {
				fmt.Fprintln(c.out, "security alert: biometric login has been turned off")
			}
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "cancelled")
			return nil
		}
		fmt.Fprintf(c.out, "signed in as %s\n", c.currentEmail())
		return nil

	default:
		return errUsage
	}
}

func (c *cli) changePassword(ctx context.Context) error {
	if _, ok := c.start(ctx).(session.Authenticated); !ok {
		return session.ErrNotAuthenticated
	}
	current, err := c.prompt("current password: ")
	if err != nil {
		return err
	}
	return c.changePasswordFrom(ctx, current)
}

func (c *cli) changePasswordFrom(ctx context.Context, current string) error {
	next, err := c.prompt("new password: ")
	if err != nil {
		return err
	}
	if err := c.ctrl.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "password changed")
	return nil
}

func (c *cli) currentEmail() string {
	if auth, ok := c.ctrl.State().(session.Authenticated); ok {
		return auth.User.Email
	}
	return ""
}

// prompt reads one line. Input is echoed; this host is for development.
func (c *cli) prompt(label string) (string, error) {
	return readLine(c.in, c.out, label)
}

func readLine(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
