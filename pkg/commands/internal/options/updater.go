package options

import (
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/wuxler/upshift/pkg/appinfo"
	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/update"
)

// UpdaterFlagCategory is the category of the updater flags.
const UpdaterFlagCategory = "[Updater]"

// NewUpdater returns a new *Updater with default values.
func NewUpdater() *Updater {
	return &Updater{
		AppName: appinfo.AppName,
		Version: appinfo.ShortVersion(),
		Channel: update.ReleaseTypeStable.String(),
	}
}

// Updater holds the options building the update context.
type Updater struct {
	Config        string   `json:"-" yaml:"-"`
	AppName       string   `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	DisplayName   string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Version       string   `json:"version,omitempty" yaml:"version,omitempty"`
	Channel       string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	ManifestURLs  []string `json:"manifest_urls,omitempty" yaml:"manifest_urls,omitempty"`
	AlternateURLs []string `json:"alternate_urls,omitempty" yaml:"alternate_urls,omitempty"`
	PublicKeyFile string   `json:"public_key_file,omitempty" yaml:"public_key_file,omitempty"`
	BaseDir       string   `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
	Executable    string   `json:"executable,omitempty" yaml:"executable,omitempty"`
	IgnoreWebroot bool     `json:"ignore_webroot,omitempty" yaml:"ignore_webroot,omitempty"`
}

// Flags returns the []cli.Flag related to current options.
func (o *Updater) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Sources:     cli.EnvVars("UPSHIFT_CONFIG"),
			Usage:       "YAML config file with updater settings",
			Destination: &o.Config,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "app-name",
			Sources:     cli.EnvVars("UPSHIFT_APP_NAME"),
			Usage:       "short application name",
			Value:       o.AppName,
			Destination: &o.AppName,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "display-name",
			Sources:     cli.EnvVars("UPSHIFT_DISPLAY_NAME"),
			Usage:       "human readable application name",
			Value:       o.DisplayName,
			Destination: &o.DisplayName,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "app-version",
			Sources:     cli.EnvVars("UPSHIFT_APP_VERSION"),
			Usage:       "version of the wrapped application",
			Value:       o.Version,
			Destination: &o.Version,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "channel",
			Sources:     cli.EnvVars("UPSHIFT_CHANNEL"),
			Usage:       `release channel, oneof ["Stable", "Beta", "Experimental", "Canary", "Nightly", "Debug"]`,
			Value:       o.Channel,
			Destination: &o.Channel,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringSliceFlag{
			Name:        "manifest-url",
			Sources:     cli.EnvVars("UPSHIFT_MANIFEST_URLS"),
			Usage:       "candidate manifest URLs, tried in order",
			Destination: &o.ManifestURLs,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringSliceFlag{
			Name:        "alternate-url",
			Sources:     cli.EnvVars("UPSHIFT_ALTERNATE_URLS"),
			Usage:       "mirror URLs tried before the manifest's own download URLs",
			Destination: &o.AlternateURLs,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "public-key",
			Sources:     cli.EnvVars("UPSHIFT_PUBLIC_KEY"),
			Usage:       "PEM file with the RSA public key manifests are verified against",
			Destination: &o.PublicKeyFile,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "base-dir",
			Sources:     cli.EnvVars("UPSHIFT_BASE_DIR"),
			Usage:       "original application directory, defaults to the executable's directory",
			Destination: &o.BaseDir,
			Category:    UpdaterFlagCategory,
		},
		&cli.StringFlag{
			Name:        "executable",
			Sources:     cli.EnvVars("UPSHIFT_EXECUTABLE"),
			Usage:       "name of the binary to launch from an installed version",
			Destination: &o.Executable,
			Category:    UpdaterFlagCategory,
		},
		&cli.BoolFlag{
			Name:        "ignore-webroot",
			Sources:     cli.EnvVars("UPSHIFT_IGNORE_WEBROOT"),
			Usage:       "exclude the webroot tree from install verification",
			Destination: &o.IgnoreWebroot,
			Category:    UpdaterFlagCategory,
		},
	}
	return flags
}

// Build creates the update context from the options, merging in the config
// file when one is given. Explicit flags win over file values.
func (o *Updater) Build() (*update.Updater, error) {
	if o.Config != "" {
		if err := o.loadConfigFile(o.Config); err != nil {
			return nil, err
		}
	}
	if o.PublicKeyFile == "" {
		return nil, errdefs.Newf(errdefs.ErrInvalidParameter, "a public key file is required")
	}
	pemBytes, err := os.ReadFile(o.PublicKeyFile)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	return update.New(update.Options{
		AppName:        o.AppName,
		DisplayName:    o.DisplayName,
		SelfVersion:    o.Version,
		Channel:        update.ParseReleaseType(o.Channel),
		ManifestURLs:   o.ManifestURLs,
		AlternateURLs:  o.AlternateURLs,
		PublicKeyPEM:   pemBytes,
		BaseDir:        o.BaseDir,
		ExecutableName: o.Executable,
		IgnoreWebroot:  o.IgnoreWebroot,
	})
}

// loadConfigFile fills unset options from the YAML file.
func (o *Updater) loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	loaded := Updater{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return errdefs.NewE(errdefs.ErrFormat, err)
	}
	if o.DisplayName == "" {
		o.DisplayName = loaded.DisplayName
	}
	if len(o.ManifestURLs) == 0 {
		o.ManifestURLs = loaded.ManifestURLs
	}
	if len(o.AlternateURLs) == 0 {
		o.AlternateURLs = loaded.AlternateURLs
	}
	if o.PublicKeyFile == "" {
		o.PublicKeyFile = loaded.PublicKeyFile
	}
	if o.BaseDir == "" {
		o.BaseDir = loaded.BaseDir
	}
	if o.Executable == "" {
		o.Executable = loaded.Executable
	}
	if loaded.AppName != "" && o.AppName == appinfo.AppName {
		o.AppName = loaded.AppName
	}
	if loaded.Version != "" && o.Version == appinfo.ShortVersion() {
		o.Version = loaded.Version
	}
	if loaded.Channel != "" && o.Channel == update.ReleaseTypeStable.String() {
		o.Channel = loaded.Channel
	}
	if loaded.IgnoreWebroot {
		o.IgnoreWebroot = true
	}
	return nil
}
