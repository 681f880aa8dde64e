// Package options defines flag groups shared between commands.
package options

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/xlog"
)

// NewCommon returns a *Common with default values.
func NewCommon() *Common {
	return &Common{}
}

// Common are options that are common to all commands.
type Common struct {
	Debug   bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

// Flags returns the []cli.Flag related to current options.
func (o *Common) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Aliases:     []string{"d"},
			Sources:     cli.EnvVars("UPSHIFT_DEBUG"),
			Usage:       "enable debug mode",
			Destination: &o.Debug,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Sources:     cli.EnvVars("UPSHIFT_LOG_FILE"),
			Usage:       "write logs to the given rotated file as well",
			Destination: &o.LogFile,
		},
	}
}

// Init implements [cmdhelper.ActionFunc] and setups global configurations.
func (o *Common) Init(_ context.Context, _ *cli.Command) error {
	c := xlog.NewConfig()
	if o.Debug {
		c.Level = xlog.LevelDebug
	}
	c.Path = o.LogFile
	xlog.SetDefault(xlog.New(c))
	return nil
}
