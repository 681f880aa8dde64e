package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/update"
)

// NewBuildCommand returns a command producing a signed update package.
func NewBuildCommand() *BuildCommand {
	return &BuildCommand{
		UpdaterOptions: options.NewUpdater(),
		ReleaseType:    update.ReleaseTypeStable.String(),
	}
}

// BuildCommand packs an application folder into package.zip plus a signed
// remote manifest, the exact inverse of the installer.
type BuildCommand struct {
	UpdaterOptions *options.Updater

	PrivateKeyFile string
	PackageVersion string
	ReleaseType    string
	RemoteURLs     []string
	IgnorePaths    []string
}

// ToCLI returns a *cli.Command.
func (c *BuildCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build a signed update package from an application folder",
		ArgsUsage: "INPUT OUTPUT",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmdhelper.ExactArgs(2)),
		Action:    c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *BuildCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "key",
			Aliases:     []string{"k"},
			Sources:     cli.EnvVars("UPSHIFT_PRIVATE_KEY"),
			Usage:       "PEM file with the RSA private signing key",
			Required:    true,
			Destination: &c.PrivateKeyFile,
		},
		&cli.StringFlag{
			Name:        "package-version",
			Usage:       "version of the packaged application",
			Required:    true,
			Destination: &c.PackageVersion,
		},
		&cli.StringFlag{
			Name:        "release-type",
			Usage:       "release track of the package",
			Value:       c.ReleaseType,
			Destination: &c.ReleaseType,
		},
		&cli.StringSliceFlag{
			Name:        "url",
			Usage:       "download URLs recorded in the remote manifest",
			Destination: &c.RemoteURLs,
		},
		&cli.StringSliceFlag{
			Name:        "ignore",
			Usage:       "paths excluded from packing and verification (directories end with /)",
			Destination: &c.IgnorePaths,
		},
	}
	return append(flags, c.UpdaterOptions.Flags()...)
}

// Run implements *cli.Command Action function.
func (c *BuildCommand) Run(ctx context.Context, cmd *cli.Command) error {
	keyBytes, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	key, err := update.ParsePrivateKeyPEM(keyBytes)
	if err != nil {
		return err
	}
	// The updater context is only used for its filesystem and clock here,
	// so the public key is derived from the signing key when none is given.
	if c.UpdaterOptions.PublicKeyFile == "" {
		pemBytes, err := update.MarshalPublicKeyPEM(&key.PublicKey)
		if err != nil {
			return err
		}
		tmp, err := os.CreateTemp("", "upshift-public-*.pem")
		if err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(pemBytes); err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		if err := tmp.Close(); err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		c.UpdaterOptions.PublicKeyFile = tmp.Name()
	}
	u, err := c.UpdaterOptions.Build()
	if err != nil {
		return err
	}

	base := &update.UpdateInfo{
		DisplayName: c.UpdaterOptions.DisplayName,
		Version:     c.PackageVersion,
		ReleaseType: c.ReleaseType,
		RemoteURLs:  c.RemoteURLs,
	}
	if base.DisplayName == "" {
		base.DisplayName = c.UpdaterOptions.AppName
	}
	for _, ignore := range c.IgnorePaths {
		base.Files = append(base.Files, update.FileEntry{Path: ignore, Ignore: true})
	}

	inputDir, outputDir := cmd.Args().Get(0), cmd.Args().Get(1)
	remote, err := u.BuildPackage(ctx, inputDir, outputDir, base, key)
	if err != nil {
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, "Built %s %s: %s/%s (%d bytes)",
		remote.DisplayName, remote.Version, outputDir, update.PackageFilename, remote.CompressedSize)
	return nil
}
