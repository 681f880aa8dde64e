package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/update"
)

// NewCheckCommand returns a command checking for an available update.
func NewCheckCommand() *CheckCommand {
	return &CheckCommand{
		UpdaterOptions: options.NewUpdater(),
	}
}

// CheckCommand queries the update servers and prints the offered manifest.
type CheckCommand struct {
	UpdaterOptions *options.Updater
}

// ToCLI returns a *cli.Command.
func (c *CheckCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Check whether a newer version is available",
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmdhelper.NoArgs()),
		Action: c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *CheckCommand) Flags() []cli.Flag {
	return c.UpdaterOptions.Flags()
}

// Run implements *cli.Command Action function.
func (c *CheckCommand) Run(ctx context.Context, cmd *cli.Command) error {
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}
	info := u.CheckForUpdate(ctx, update.ReleaseTypeUnknown)
	if info == nil {
		cmdhelper.Fprintf(cmd.Writer, "No update available")
		return nil
	}
	pretty, err := cmdhelper.PrettifyJSON(info)
	if err != nil {
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, "Update available:\n%s", string(pretty))
	return nil
}
