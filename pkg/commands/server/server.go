// Package server implements the update distribution server command.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/wuxler/upshift/pkg/cmdhelper"
	"github.com/wuxler/upshift/pkg/commands/internal/options"
	"github.com/wuxler/upshift/pkg/update"
	"github.com/wuxler/upshift/pkg/xlog"
)

// New creates a new Command.
func New() *Command {
	return NewCommand()
}

// NewCommand returns a command with default values.
func NewCommand() *Command {
	return &Command{
		ServerOptions: options.NewServerOptions(),
		Dir:           ".",
	}
}

// Command serves built update packages and their signed manifests over HTTP
// below /channels/<channel>/, the URL shape the manifest fetcher's channel
// substitution expects: one subdirectory per channel holding
// autoupdate.manifest and package.zip.
type Command struct {
	ServerOptions *options.ServerOptions
	Dir           string
}

// ToCLI transforms to a *cli.Command.
func (c *Command) ToCLI() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"srv"},
		Usage:   "Serve built update packages in service mode",
		UsageText: `upshift server [OPTIONS]

# Serve the packages below ./dist with default port 8080
$ upshift server --dir ./dist

# Serve with custom port
$ upshift server --dir ./dist --port 9000
`,
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmdhelper.NoArgs()),
		Action: c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *Command) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Sources:     cli.EnvVars("UPSHIFT_SERVER_DIR"),
			Usage:       "directory with one subdirectory per channel",
			Value:       c.Dir,
			Destination: &c.Dir,
		},
	}
	return append(flags, c.ServerOptions.Flags()...)
}

// Run is the main function for the current command.
func (c *Command) Run(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	address := c.ServerOptions.Address()
	xlog.C(ctx).Infof("Starting update server %s, serving %s", address, c.Dir)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	channels := router.Group("/channels")
	channels.GET("/:channel/"+update.ManifestFilename, func(gc *gin.Context) {
		gc.File(filepath.Join(c.Dir, gc.Param("channel"), update.ManifestFilename))
	})
	channels.GET("/:channel/"+update.PackageFilename, func(gc *gin.Context) {
		gc.File(filepath.Join(c.Dir, gc.Param("channel"), update.PackageFilename))
	})

	srv := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.C(ctx).Error("Server error", "error", err)
		}
	}()

	cmdhelper.Fprintf(cmd.Writer, "Server started at http://%s\n", address)
	cmdhelper.Fprintf(cmd.Writer, "Press Ctrl+C to stop the server\n")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		xlog.C(ctx).Error("Server shutdown failed", "error", err)
		return err
	}

	xlog.C(ctx).Info("Server stopped")
	return nil
}
