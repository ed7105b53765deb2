package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"unipkg/pkg/manager"
)

// Confirm prompts the user for yes/no confirmation.
func Confirm(prompt string, defaultYes bool) (bool, error) {
	label := prompt
	if defaultYes {
		label += " [Y/n]"
	} else {
		label += " [y/N]"
	}

	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		p.Default = "y"
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, err
		}
		return defaultYes, nil
	}

	return parseAnswer(result, defaultYes), nil
}

func parseAnswer(answer string, defaultYes bool) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}

// ConfirmOperation asks before a mutating operation touches the system.
func ConfirmOperation(op manager.Operation, backend string, packages []manager.PackageSpec) (bool, error) {
	names := make([]string, len(packages))
	for i, p := range packages {
		names[i] = p.String()
	}
	return Confirm(fmt.Sprintf("%s %s with %s?", capitalize(string(op)), strings.Join(names, " "), backend), true)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
