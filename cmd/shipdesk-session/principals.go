// ABOUTME: Delegated principal directory commands
// ABOUTME: list, add, activate, deactivate, remove and the permission catalog

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/store"
)

func cmdPrincipals(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: shipdesk-session principals <list|add|activate|deactivate|remove|permissions>")
	}

	subcmd := args[0]
	subargs := args[1:]

	if subcmd == "permissions" || subcmd == "perms" {
		return printCatalog(os.Stdout)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch subcmd {
	case "list", "ls":
		return principalsList(ctx, a.db, subargs)
	case "add", "create":
		return principalsAdd(ctx, a.db, subargs)
	case "activate":
		return principalsSetStatus(ctx, a.db, subargs, store.PrincipalStatusActive)
	case "deactivate", "disable":
		return principalsSetStatus(ctx, a.db, subargs, store.PrincipalStatusInactive)
	case "remove", "rm", "delete":
		return principalsRemove(ctx, a.db, subargs)
	default:
		return fmt.Errorf("unknown principals subcommand: %s", subcmd)
	}
}

func principalsList(ctx context.Context, ps store.PrincipalStore, args []string) error {
	flags := pflag.NewFlagSet("principals list", pflag.ContinueOnError)
	parent := flags.String("parent", "", "only principals of this parent account")
	if err := flags.Parse(args); err != nil {
		return err
	}

	principals, err := ps.ListDelegatedPrincipals(ctx, *parent)
	if err != nil {
		return fmt.Errorf("listing principals: %w", err)
	}

	if len(principals) == 0 {
		fmt.Println("No delegated principals found.")
		return nil
	}

	return printPrincipals(os.Stdout, principals)
}

func printPrincipals(out io.Writer, principals []*store.DelegatedPrincipal) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tPARENT\tSTATUS\tPERMISSIONS")
	for _, p := range principals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Email, orDash(p.DisplayName), orDash(p.RoleName), p.ParentAccountID, p.Status, len(p.Permissions))
	}
	return w.Flush()
}

func principalsAdd(ctx context.Context, ps store.PrincipalStore, args []string) error {
	flags := pflag.NewFlagSet("principals add", pflag.ContinueOnError)
	var (
		parent, email, name, role, passwordFile string
		perms                                   []string
	)
	flags.StringVar(&parent, "parent", "", "parent (primary) account ID")
	flags.StringVar(&email, "email", "", "login email")
	flags.StringVar(&name, "name", "", "display name")
	flags.StringVar(&role, "role", "", "role label")
	flags.StringSliceVar(&perms, "perm", nil, "permission tag (repeatable or comma-separated)")
	flags.StringVar(&passwordFile, "password-file", "", "read the principal's secret from this file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if parent == "" || email == "" {
		return errors.New("usage: shipdesk-session principals add --parent <id> --email <email> [--name <name>] [--role <role>] [--perm <tag>...]")
	}

	perms, err := validatePermissions(perms)
	if err != nil {
		return err
	}

	secret, err := readSecret(passwordFile, os.Stdin)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("a secret is required for delegated principals")
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}

	p := &store.DelegatedPrincipal{
		ParentAccountID: parent,
		DisplayName:     name,
		Email:           email,
		RoleName:        role,
		Permissions:     perms,
		PasswordHash:    hash,
	}
	if err := ps.CreateDelegatedPrincipal(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return fmt.Errorf("a principal with email %s already exists", email)
		}
		return fmt.Errorf("creating principal: %w", err)
	}

	color.Green("✓ Created delegated principal")
	fmt.Printf("  ID:          %s\n", p.ID)
	fmt.Printf("  Email:       %s\n", p.Email)
	fmt.Printf("  Permissions: %s\n", strings.Join(p.Permissions, ", "))
	return nil
}

// validatePermissions rejects tags outside the catalog and drops duplicates,
// keeping the first occurrence order.
func validatePermissions(tags []string) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if !auth.IsKnownPermission(tag) {
			return nil, fmt.Errorf("unknown permission %q (see: shipdesk-session principals permissions)", tag)
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result, nil
}

func principalsSetStatus(ctx context.Context, ps store.PrincipalStore, args []string, status store.PrincipalStatus) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: shipdesk-session principals %s <id>", statusVerb(status))
	}
	id := args[0]

	if err := ps.UpdateDelegatedPrincipalStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("principal not found: %s", id)
		}
		return fmt.Errorf("updating principal: %w", err)
	}

	color.Green("✓ Principal %s is now %s", id, status)
	return nil
}

func statusVerb(status store.PrincipalStatus) string {
	if status == store.PrincipalStatusActive {
		return "activate"
	}
	return "deactivate"
}

func principalsRemove(ctx context.Context, ps store.PrincipalStore, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shipdesk-session principals remove <id>")
	}
	id := args[0]

	if err := ps.DeleteDelegatedPrincipal(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("principal not found: %s", id)
		}
		return fmt.Errorf("removing principal: %w", err)
	}

	color.Green("✓ Removed principal %s", id)
	return nil
}

func printCatalog(out io.Writer) error {
	for _, tag := range auth.PermissionCatalog() {
		if _, err := fmt.Fprintln(out, tag); err != nil {
			return err
		}
	}
	return nil
}
