package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/update"
)

// NewInstallCommand returns a command performing one check-and-install cycle.
func NewInstallCommand() *InstallCommand {
	return &InstallCommand{
		UpdaterOptions: options.NewUpdater(),
	}
}

// InstallCommand checks for an update and installs it into the update root.
type InstallCommand struct {
	UpdaterOptions *options.Updater
	Yes            bool
}

// ToCLI returns a *cli.Command.
func (c *InstallCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "install",
		Usage:  "Download, verify and install the newest available version",
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmdhelper.NoArgs()),
		Action: c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *InstallCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "do not ask for confirmation",
			Destination: &c.Yes,
		},
	}
	return append(flags, c.UpdaterOptions.Flags()...)
}

// Run implements *cli.Command Action function.
func (c *InstallCommand) Run(ctx context.Context, cmd *cli.Command) error {
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}
	info := u.CheckForUpdate(ctx, update.ReleaseTypeUnknown)
	if info == nil {
		cmdhelper.Fprintf(cmd.Writer, "No update available")
		return nil
	}
	if !c.Yes {
		ok, err := cmdhelper.Confirm(fmt.Sprintf("Install %s %s", info.DisplayName, info.Version))
		if err != nil {
			return err
		}
		if !ok {
			cmdhelper.Fprintf(cmd.Writer, "Aborted")
			return nil
		}
	}
	if !u.DownloadAndUnpack(ctx, info) {
		return errdefs.Newf(errdefs.ErrVerificationFailed, "unable to install %s %s", info.DisplayName, info.Version)
	}
	cmdhelper.Fprintf(cmd.Writer, "Installed %s %s into %s", info.DisplayName, info.Version, u.InstallRoot())
	return nil
}
