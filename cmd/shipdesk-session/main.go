// ABOUTME: Entry point for the shipdesk-session CLI
// ABOUTME: Logs principals in and out, inspects the stored session and manages the delegated directory

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// version is overridden with -ldflags at release build time.
var version = "dev"

const banner = `
     _     _           _           _
 ___| |__ (_)_ __   __| | ___  ___| | __
/ __| '_ \| | '_ \ / _' |/ _ \/ __| |/ /
\__ \ | | | | |_) | (_| |  __/\__ \   <
|___/_| |_|_| .__/ \__,_|\___||___/_|\_\
            |_|                  session
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(ctx, args)
	case "logout":
		err = cmdLogout(ctx)
	case "status":
		err = cmdStatus(ctx)
	case "restore":
		err = cmdRestore(ctx)
	case "refresh":
		err = cmdRefresh(ctx)
	case "principals":
		err = cmdPrincipals(ctx, args)
	case "audit":
		err = cmdAudit(ctx, args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: shipdesk-session <command> [args]")
	fmt.Println()
	yellow.Println("Session:")
	fmt.Println("  login <identifier>          Log in (delegated directory first, then account service)")
	fmt.Println("      --password-file <path>  Read the secret from a file instead of prompting")
	fmt.Println("      --remember              Ask the account service for a long-lived session")
	fmt.Println("  logout                      End the session locally and remotely")
	fmt.Println("  status                      Show the stored session and its permissions")
	fmt.Println("  restore                     Validate and repair the stored session")
	fmt.Println("  refresh                     Re-mint a delegated session token")
	fmt.Println()
	yellow.Println("Delegated directory:")
	fmt.Println("  principals list [--parent <account-id>]")
	fmt.Println("  principals add --parent <id> --email <email> --name <name> --role <role> --perm <tag>...")
	fmt.Println("  principals deactivate <id>")
	fmt.Println("  principals activate <id>")
	fmt.Println("  principals remove <id>")
	fmt.Println("  principals permissions      List the permission catalog")
	fmt.Println()
	yellow.Println("Audit:")
	fmt.Println("  audit [--principal <id>] [--action <action>] [--since <duration>] [--limit <n>]")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  SHIPDESK_CONFIG             Config file (default: ~/.config/shipdesk/session.yaml)")
	fmt.Println("  SHIPDESK_SECRET             Login secret for non-interactive use")
	fmt.Println()
}
