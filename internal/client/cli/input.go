package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// getPassword reads a password without echo when input is a terminal, or a
// single line otherwise (for scripted use).
func (a *App) getPassword() ([]byte, error) {
	if f, ok := a.in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		return pw, err
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("error reading password: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// readContent returns the contents of the file named by args[idx], or all
// of standard input when no file is given.
func (a *App) readContent(args []string, idx int) (string, error) {
	if len(args) > idx {
		b, err := os.ReadFile(args[idx])
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(a.in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseCardID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid card id %q", s)
	}
	return id, nil
}

// firstLine is the one-line preview shown by ls.
func firstLine(s string, width int) string {
	line, _, _ := strings.Cut(s, "\n")
	if r := []rune(line); len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return line
}
