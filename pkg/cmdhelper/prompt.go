package cmdhelper

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// Confirm asks the user a yes/no question and reports the answer.
// Declining is not an error.
func Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
