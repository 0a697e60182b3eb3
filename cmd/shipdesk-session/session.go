// ABOUTME: Session lifecycle commands: login, logout, status, restore, refresh
// ABOUTME: Each command drives the session manager against the configured storage

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/session"
)

func cmdLogin(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	var (
		remember     bool
		passwordFile string
	)
	flags.BoolVar(&remember, "remember", false, "request a long-lived session")
	flags.StringVar(&passwordFile, "password-file", "", "read the secret from this file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: shipdesk-session login <identifier> [--remember] [--password-file <path>]")
	}
	identifier := flags.Arg(0)

	secret, err := readSecret(passwordFile, os.Stdin)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.mgr.Login(ctx, identifier, secret, remember)
	if err != nil {
		return describeLoginError(err)
	}

	color.Green("✓ Logged in as %s (%s)", displayName(sess), sess.Kind)
	return printSession(os.Stdout, sess, time.Now())
}

func describeLoginError(err error) error {
	switch {
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return errors.New("no account matches this identifier")
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return fmt.Errorf("login failed: %w", err)
	default:
		return err
	}
}

func cmdLogout(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Load the stored session so primary logouts reach the account service.
	a.mgr.Restore(ctx)

	if err := a.mgr.Logout(ctx); err != nil {
		color.Yellow("Logged out locally with errors: %v", err)
		return nil
	}
	color.Green("✓ Logged out")
	return nil
}

func cmdStatus(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.mgr.Restore(ctx) {
		fmt.Println("Not logged in.")
		return nil
	}
	return printSession(os.Stdout, a.mgr.Current(), time.Now())
}

func cmdRestore(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.mgr.Restore(ctx) {
		state, _ := a.mgr.State()
		fmt.Printf("No valid session to restore (state: %s).\n", state)
		return nil
	}

	sess := a.mgr.Current()
	color.Green("✓ Restored session for %s (%s)", displayName(sess), sess.Kind)
	return nil
}

func cmdRefresh(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.mgr.Restore(ctx) {
		return session.ErrNoSession
	}

	sess, err := a.mgr.Refresh(ctx)
	if errors.Is(err, auth.ErrPrincipalRevoked) {
		return errors.New("principal has been deactivated or removed; session cleared")
	}
	if err != nil {
		return err
	}

	color.Green("✓ Session refreshed")
	return printSession(os.Stdout, sess, time.Now())
}

func printSession(out io.Writer, sess *session.Session, now time.Time) error {
	if sess == nil {
		return session.ErrNoSession
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Principal:\t%s\n", sess.Context.PrincipalID)
	fmt.Fprintf(w, "Name:\t%s\n", displayName(sess))
	if sess.Context.Email != "" {
		fmt.Fprintf(w, "Email:\t%s\n", sess.Context.Email)
	}
	fmt.Fprintf(w, "Kind:\t%s\n", sess.Kind)
	if sess.Kind == auth.KindDelegated {
		fmt.Fprintf(w, "Role:\t%s\n", orDash(sess.Context.RoleName))
		fmt.Fprintf(w, "Parent account:\t%s\n", orDash(sess.Context.ParentAccountID))
	}
	if sess.Context.BusinessName != "" {
		fmt.Fprintf(w, "Business:\t%s\n", sess.Context.BusinessName)
	}
	if !sess.Context.LoggedInAt.IsZero() {
		fmt.Fprintf(w, "Logged in:\t%s\n", humanize.RelTime(sess.Context.LoggedInAt, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "Expires:\t%s\n", formatExpiry(sess.ExpiresAt, now))
	fmt.Fprintf(w, "Permissions:\t%s\n", formatPermissions(sess))
	return w.Flush()
}

func displayName(sess *session.Session) string {
	if sess.Context.DisplayName != "" {
		return sess.Context.DisplayName
	}
	if sess.Context.Email != "" {
		return sess.Context.Email
	}
	return sess.Context.PrincipalID
}

func formatExpiry(expiresAt, now time.Time) string {
	if expiresAt.IsZero() {
		return "unknown"
	}
	if !now.Before(expiresAt) {
		return "expired"
	}
	return humanize.RelTime(expiresAt, now, "ago", "from now")
}

func formatPermissions(sess *session.Session) string {
	perms := auth.EffectivePermissionsForKind(sess.Kind, sess.Permissions)
	if len(perms) == 0 {
		return "(none)"
	}
	if sess.Kind == auth.KindPrimary {
		return fmt.Sprintf("all (%d)", len(perms))
	}
	return strings.Join(perms, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
