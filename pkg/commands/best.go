package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
)

// NewBestCommand returns a command printing the version that would launch.
func NewBestCommand() *BestCommand {
	return &BestCommand{
		UpdaterOptions: options.NewUpdater(),
	}
}

// BestCommand resolves and prints the best installed version.
type BestCommand struct {
	UpdaterOptions *options.Updater
}

// ToCLI returns a *cli.Command.
func (c *BestCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "best",
		Usage:  "Show the version the supervisor would launch",
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmdhelper.NoArgs()),
		Action: c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *BestCommand) Flags() []cli.Flag {
	return c.UpdaterOptions.Flags()
}

// Run implements *cli.Command Action function.
func (c *BestCommand) Run(_ context.Context, cmd *cli.Command) error {
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}
	folder, version := u.GetBestVersion(true)
	cmdhelper.Fprintf(cmd.Writer, "%s (%s)", folder, version)
	return nil
}
