package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword and stdin are swapped out in tests to avoid touching the terminal.
var (
	readPassword           = term.ReadPassword
	stdin        io.Reader = os.Stdin
)

// promptSecret prints prompt to w and reads a line without echo.
func promptSecret(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

// promptNewSecret reads a secret twice and fails if the entries differ.
func promptNewSecret(w io.Writer, prompt string) (string, error) {
	first, err := promptSecret(w, prompt)
	if err != nil {
		return "", err
	}
	second, err := promptSecret(w, "Repeat "+strings.ToLower(prompt[:1])+prompt[1:])
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

// promptLine prints prompt to w and reads one trimmed line of visible input.
func promptLine(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
