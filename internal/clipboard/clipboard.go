// Package clipboard copies text to the desktop clipboard through the
// platform's command-line tool.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available (install wl-clipboard, xclip or xsel)")

const copyTimeout = 4 * time.Second

type commandSpec struct {
	name string
	args []string
	// detach leaves the tool running after stdin closes; xclip and xsel
	// keep serving the selection until another client takes it.
	detach bool
}

var candidates = map[string][]commandSpec{
	"darwin": {
		{name: "pbcopy"},
	},
	"linux": {
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard", "-in", "-silent"}, detach: true},
		{name: "xsel", args: []string{"--clipboard", "--input"}, detach: true},
	},
}

// CopyText places value on the clipboard.
func CopyText(ctx context.Context, value string) error {
	return copyText(ctx, runtime.GOOS, exec.LookPath, value)
}

func copyText(ctx context.Context, goos string, lookPath func(string) (string, error), value string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := detectCommand(goos, lookPath)
	if err != nil {
		return err
	}

	if spec.detach {
		return copyDetached(spec, value)
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, spec.name, spec.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if runErr := cmd.Run(); runErr != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return fmt.Errorf("copy to clipboard with %s: %w", spec.name, runErr)
	}
	return nil
}

func detectCommand(goos string, lookPath func(string) (string, error)) (commandSpec, error) {
	for _, spec := range candidates[goos] {
		if _, err := lookPath(spec.name); err == nil {
			return spec, nil
		}
	}
	return commandSpec{}, ErrUnavailable
}

func copyDetached(spec commandSpec, value string) error {
	cmd := exec.Command(spec.name, spec.args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start %s: %w", spec.name, err)
	}

	if _, err := io.WriteString(stdin, value); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}

	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("close clipboard stdin: %w", err)
	}

	_ = cmd.Process.Release()
	return nil
}
