package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/errdefs"
)

// NewVerifyCommand returns a command verifying an unpacked install folder.
func NewVerifyCommand() *VerifyCommand {
	return &VerifyCommand{
		UpdaterOptions: options.NewUpdater(),
	}
}

// VerifyCommand validates an install directory against its signed manifest.
type VerifyCommand struct {
	UpdaterOptions *options.Updater
}

// ToCLI returns a *cli.Command.
func (c *VerifyCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Verify an unpacked install directory against its signed manifest",
		ArgsUsage: "FOLDER",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmdhelper.ExactArgs(1)),
		Action:    c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *VerifyCommand) Flags() []cli.Flag {
	return c.UpdaterOptions.Flags()
}

// Run implements *cli.Command Action function.
func (c *VerifyCommand) Run(_ context.Context, cmd *cli.Command) error {
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}
	folder := cmd.Args().First()
	if !u.VerifyUnpacked(folder, nil) {
		return errdefs.Newf(errdefs.ErrVerificationFailed, "%s does not match its manifest", folder)
	}
	cmdhelper.Fprintf(cmd.Writer, "OK: %s matches its signed manifest", folder)
	return nil
}
