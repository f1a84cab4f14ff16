package prompt

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// Input prompts for free text, offering defaultValue.
func Input(label, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// InputPort prompts for a TCP port. 0 is accepted and means "any free port".
func InputPort(label string, defaultValue int) (int, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  strconv.Itoa(defaultValue),
		Validate: ValidatePort,
	}

	result, err := prompt.Run()
	if err != nil {
		return 0, wrapError(err)
	}

	port, _ := strconv.Atoi(result) // validated
	return port, nil
}

// InputDirectory prompts for a path that must name an existing directory.
// An empty answer is allowed and returned as "".
func InputDirectory(label, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: ValidateDirectory,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// ValidatePort accepts integers between 0 and 65535.
func ValidatePort(input string) error {
	port, err := strconv.Atoi(input)
	if err != nil {
		return errors.New("must be a valid integer")
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("must be a valid port (0-65535)")
	}
	return nil
}

// ValidateDirectory accepts "" or the path of an existing directory.
func ValidateDirectory(input string) error {
	if input == "" {
		return nil
	}
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("cannot access %s", input)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", input)
	}
	return nil
}
