// ABOUTME: Audit log command for session lifecycle events
// ABOUTME: Filters by principal, action and age, printed as a table

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/2389/shipdesk-session/internal/store"
)

func cmdAudit(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	var (
		principal, action string
		since             time.Duration
		limit             int
	)
	flags.StringVar(&principal, "principal", "", "only entries for this principal ID")
	flags.StringVar(&action, "action", "", "only entries with this action")
	flags.DurationVar(&since, "since", 0, "only entries newer than this (e.g. 24h)")
	flags.IntVar(&limit, "limit", 50, "maximum entries to show")
	if err := flags.Parse(args); err != nil {
		return err
	}

	filter, err := buildAuditFilter(principal, action, since, limit, time.Now())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.ListAuditLog(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing audit log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}
	return printAudit(os.Stdout, entries)
}

func buildAuditFilter(principal, action string, since time.Duration, limit int, now time.Time) (store.AuditFilter, error) {
	filter := store.AuditFilter{Limit: limit}
	if principal != "" {
		filter.PrincipalID = &principal
	}
	if action != "" {
		a, err := parseAuditAction(action)
		if err != nil {
			return store.AuditFilter{}, err
		}
		filter.Action = &a
	}
	if since > 0 {
		t := now.Add(-since)
		filter.Since = &t
	}
	return filter, nil
}

func parseAuditAction(s string) (store.AuditAction, error) {
	valid := make([]string, 0, len(store.ValidAuditActions))
	for _, a := range store.ValidAuditActions {
		if string(a) == s {
			return a, nil
		}
		valid = append(valid, string(a))
	}
	return "", fmt.Errorf("unknown audit action %q (valid: %s)", s, strings.Join(valid, ", "))
}

func printAudit(out io.Writer, entries []store.AuditEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tKIND\tPRINCIPAL\tSESSION\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action, orDash(e.Kind), e.PrincipalID, orDash(shortID(e.SessionID)), formatDetail(e.Detail))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return ""
	}
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}
