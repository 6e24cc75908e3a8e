// Package terminal holds the interactive bits of the CLI.
package terminal

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	klog "k8s.io/klog/v2"
)

// ErrNotConfirmed is returned when the user declines a prompt.
var ErrNotConfirmed = errors.New("operation not confirmed")

// ErrNotInteractive is returned when a confirmation is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal (use --yes)")

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Confirm writes question to w and reads a yes/no answer from r. Only "y" and
// "yes" (any case) confirm.
func Confirm(r io.Reader, w io.Writer, question string) error {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrNotConfirmed
	}
}

// ConfirmStdin prompts on stderr unless assumeYes is set.
func ConfirmStdin(question string, assumeYes bool) error {
	if assumeYes {
		return nil
	}
	if !IsInteractive(os.Stdin) {
		return ErrNotInteractive
	}
	return Confirm(os.Stdin, os.Stderr, question)
}

// QuietKlog limits klog noise from client-go so it does not interleave with the CLI log.
func QuietKlog() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("stderrthreshold", "FATAL")
	_ = fs.Set("v", "0")
	_ = fs.Set("logtostderr", "false")
	_ = fs.Set("alsologtostderr", "false")
	klog.SetOutput(io.Discard)
}
