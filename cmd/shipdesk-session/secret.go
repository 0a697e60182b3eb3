// ABOUTME: Reads the login secret from a file, the environment, or an interactive prompt
// ABOUTME: Prompts go to stderr so stdout stays clean for scripting

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const secretEnvVar = "SHIPDESK_SECRET"

// readSecret resolves the login secret. Precedence: password file, the
// SHIPDESK_SECRET environment variable, a no-echo terminal prompt, then a
// single line from stdin when it is not a terminal.
func readSecret(passwordFile string, stdin *os.File) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		return trimSecret(string(data)), nil
	}

	if secret, ok := os.LookupEnv(secretEnvVar); ok {
		return secret, nil
	}

	if term.IsTerminal(int(stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Secret: ")
		data, err := term.ReadPassword(int(stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(data), nil
	}

	return readSecretLine(stdin)
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return trimSecret(line), nil
}

// trimSecret drops the trailing newline a file or pipe usually carries.
func trimSecret(s string) string {
	return strings.TrimRight(s, "\r\n")
}
