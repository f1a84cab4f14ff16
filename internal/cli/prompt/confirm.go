package prompt

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirm asks a yes/no question. An empty answer selects defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		switch {
		case IsAborted(err):
			return false, ErrAborted
		case result == "":
			return defaultYes, nil
		default:
			// promptui reports "n" as ErrAbort
			return false, nil
		}
	}

	return ParseYesNo(result, defaultYes), nil
}

// ParseYesNo interprets a typed confirmation answer.
func ParseYesNo(answer string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}
