package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompts go to stderr so stdout stays clean for --json output.

// promptHidden reads a line without echo when stdin is a terminal, and a
// plain line otherwise.
func (a *app) promptHidden(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return a.readLine()
}

// confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (a *app) confirm(prompt string) (bool, error) {
	fmt.Fprint(a.errOut, prompt)
	answer, err := a.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// masterPassword returns AIVAULT_MASTER_PASSWORD or asks for it.
func (a *app) masterPassword() (string, error) {
	if a.cfg.MasterPassword != "" {
		return a.cfg.MasterPassword, nil
	}
	return a.promptHidden("Master password: ")
}

// readLine returns the next input line without its terminator. EOF yields
// whatever was read, possibly "".
func (a *app) readLine() (string, error) {
	line, err := a.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
