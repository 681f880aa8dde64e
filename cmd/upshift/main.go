// Package main is the entry of the application.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands"
	"github.com/wuxler/upshift/pkg/commands/server"
)

func main() {
	common := commands.NewCommonOptions()
	app := cli.Command{
		Name:                  "upshift",
		Usage:                 "upshift keeps an application running from its freshest verified version",
		Suggest:               true,
		EnableShellCompletion: true,
		HideVersion:           true,
		HideHelpCommand:       true,
		Flags:                 common.Flags(),
		Before:                cli.BeforeFunc(common.Init),
		Commands: []*cli.Command{
			commands.NewVersionCommand().ToCLI(),
			commands.NewRunCommand().ToCLI(),
			commands.NewCheckCommand().ToCLI(),
			commands.NewInstallCommand().ToCLI(),
			commands.NewVerifyCommand().ToCLI(),
			commands.NewBestCommand().ToCLI(),
			commands.NewBuildCommand().ToCLI(),
			commands.NewKeygenCommand().ToCLI(),
			server.New().ToCLI(),
		},
		ExitErrHandler: func(ctx context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(1)
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}
