package commands

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/update"
	"github.com/wuxler/upshift/pkg/xlog"
)

// NewRunCommand returns the supervisor command.
func NewRunCommand() *RunCommand {
	return &RunCommand{
		UpdaterOptions: options.NewUpdater(),
		Strategy:       update.StrategyCheckDuring.String(),
	}
}

// RunCommand supervises an external program: it launches the best installed
// version, keeps it updated per the chosen strategy, and relaunches it when
// the program exits with the magic exit code.
type RunCommand struct {
	UpdaterOptions *options.Updater
	Strategy       string
}

// ToCLI returns a *cli.Command.
func (c *RunCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a program from its most recent installed version",
		ArgsUsage: "PROG [ARGS...]",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmdhelper.MinimumNArgs(1)),
		Action:    c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *RunCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "strategy",
			Sources:     cli.EnvVars("UPSHIFT_STRATEGY"),
			Usage:       `update strategy, oneof ["CheckBefore", "CheckDuring", "CheckAfter", "InstallBefore", "InstallDuring", "InstallAfter", "Never"]`,
			Value:       c.Strategy,
			Destination: &c.Strategy,
		},
	}
	return append(flags, c.UpdaterOptions.Flags()...)
}

// Run implements *cli.Command Action function.
func (c *RunCommand) Run(ctx context.Context, cmd *cli.Command) error {
	strategy, err := update.ParseStrategy(c.Strategy)
	if err != nil {
		return err
	}
	prog, err := filepath.Abs(cmd.Args().First())
	if err != nil {
		return err
	}
	progArgs := cmd.Args().Tail()

	if c.UpdaterOptions.BaseDir == "" {
		c.UpdaterOptions.BaseDir = filepath.Dir(prog)
	}
	if c.UpdaterOptions.Executable == "" {
		c.UpdaterOptions.Executable = filepath.Base(prog)
	}
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}

	workload := func(args []string) int {
		return runProgram(ctx, prog, args)
	}
	code := u.RunFromMostRecent(ctx, workload, progArgs, strategy)
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// runProgram executes the wrapped program directly, bridging the standard
// streams, and maps any launch failure to a non-zero exit code.
func runProgram(ctx context.Context, prog string, args []string) int {
	command := exec.CommandContext(ctx, prog, args...)
	command.Stdin = os.Stdin
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr
	if err := command.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		xlog.Errorf("unable to run %s: %+v", prog, err)
		return 1
	}
	return 0
}
