package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/update"
)

// NewKeygenCommand returns a command generating an RSA signing key pair.
func NewKeygenCommand() *KeygenCommand {
	return &KeygenCommand{
		Bits:   update.DefaultKeyBits,
		OutDir: ".",
	}
}

// KeygenCommand writes private.pem and public.pem for package signing.
type KeygenCommand struct {
	Bits   int64
	OutDir string
	Yes    bool
}

// ToCLI returns a *cli.Command.
func (c *KeygenCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:   "keygen",
		Usage:  "Generate an RSA key pair for signing update packages",
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmdhelper.NoArgs()),
		Action: c.Run,
	}
}

// Flags returns a list of cli flags of the commands.
func (c *KeygenCommand) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "bits",
			Usage:       "RSA key size in bits",
			Value:       c.Bits,
			Destination: &c.Bits,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "directory to write private.pem and public.pem into",
			Value:       c.OutDir,
			Destination: &c.OutDir,
		},
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "overwrite existing key files without asking",
			Destination: &c.Yes,
		},
	}
}

// Run implements *cli.Command Action function.
func (c *KeygenCommand) Run(_ context.Context, cmd *cli.Command) error {
	privPath := filepath.Join(c.OutDir, "private.pem")
	pubPath := filepath.Join(c.OutDir, "public.pem")
	for _, path := range []string{privPath, pubPath} {
		if _, err := os.Stat(path); err == nil && !c.Yes {
			ok, err := cmdhelper.Confirm(fmt.Sprintf("Overwrite %s", path))
			if err != nil {
				return err
			}
			if !ok {
				cmdhelper.Fprintf(cmd.Writer, "Aborted")
				return nil
			}
		}
	}

	key, err := update.GenerateKey(int(c.Bits))
	if err != nil {
		return err
	}
	pubBytes, err := update.MarshalPublicKeyPEM(&key.PublicKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if err := os.WriteFile(privPath, update.MarshalPrivateKeyPEM(key), 0o600); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if err := os.WriteFile(pubPath, pubBytes, 0o644); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	cmdhelper.Fprintf(cmd.Writer, "Wrote %s and %s", privPath, pubPath)
	return nil
}
