package prompt

import (
	"github.com/manifoldco/promptui"
)

// SelectString prompts the user to pick one of items. The cursor starts on
// defaultValue when it is present.
func SelectString(label string, items []string, defaultValue string) (string, error) {
	cursor := 0
	for i, item := range items {
		if item == defaultValue {
			cursor = i
			break
		}
	}

	prompt := promptui.Select{
		Label:     label,
		Items:     items,
		CursorPos: cursor,
		Size:      len(items),
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "* {{ . | green }}",
		},
	}

	_, result, err := prompt.Run()
	return result, wrapError(err)
}
