package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
)

var errAborted = errors.New("aborted")

// isInteractive reports whether stdin is a terminal a prompt can read from.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// confirm asks a yes/no question defaulting to no. Ctrl+C returns errAborted.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s [y/N]", label),
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, errAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(result))
	return answer == "y" || answer == "yes", nil
}

// approveDestructive decides whether a destructive command may proceed.
// --yes approves, an interactive terminal is asked, anything else falls back
// to a dry run.
func approveDestructive(yes bool, label string) (bool, error) {
	if yes {
		return true, nil
	}
	if !isInteractive() {
		fmt.Fprintln(os.Stderr, "note: not a terminal and --yes not given; showing a dry run")
		return false, nil
	}
	return confirm(label)
}
