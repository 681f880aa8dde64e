package commands

import (
	"github.com/wuxler/upshift/pkg/commands/internal/options"
)

// NewCommonOptions returns the flag group shared by every command, wired into
// the root command by main.
func NewCommonOptions() *options.Common {
	return options.NewCommon()
}
