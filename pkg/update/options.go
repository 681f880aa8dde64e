package update

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"

	"github.com/wuxler/upshift/pkg/util/xhttp"
)

// MagicExitCode is the exit code with which a supervised child requests a
// re-evaluation and relaunch instead of terminating the supervisor.
const MagicExitCode = 126

// Environment variable suffixes understood by the supervisor. The full name
// is "AUTOUPDATER_<APP>_<SUFFIX>" with the configured app name uppercased.
const (
	EnvSuffixInstallRoot = "INSTALL_ROOT"
	EnvSuffixUpdateRoot  = "UPDATE_ROOT"
	EnvSuffixSkipUpdate  = "SKIP_UPDATE"
	EnvSuffixPolicy      = "POLICY"
	EnvSuffixSleep       = "SLEEP"
)

// Options configures an Updater.
type Options struct {
	// AppName is the short application name used for folder names, env
	// variables and the update check user agent.
	AppName string

	// DisplayName is the human readable application name. Defaults to AppName.
	DisplayName string

	// SelfVersion is the version of the running application.
	SelfVersion string

	// SelfReleaseType is the release type the running application was built
	// as. Defaults to the channel name.
	SelfReleaseType string

	// Channel is the compiled-in default release channel.
	Channel ReleaseType

	// ManifestURLs are the candidate URLs for the remote manifest, tried in
	// order.
	ManifestURLs []string

	// AlternateURLs are optional mirror URLs. During package download the
	// last path segment of each mirror is replaced with the package filename
	// and the results are tried before the manifest's own remote URLs.
	AlternateURLs []string

	// PublicKeyPEM is the PEM encoded RSA public key every signed stream is
	// verified against.
	PublicKeyPEM []byte

	// BaseDir is the directory the application was originally installed to.
	// Defaults to the directory of the running executable. It is never
	// written to by the updater.
	BaseDir string

	// ExecutableName is the name of the binary to spawn from an installed
	// version folder. Defaults to the name of the running executable.
	ExecutableName string

	// IgnoreWebroot excludes any top-level "webroot" tree from install
	// verification.
	IgnoreWebroot bool

	// OnError receives every recovered error event. Defaults to logging.
	OnError func(error)

	// OnProgress receives download progress in [0,1].
	OnProgress func(float64)

	// HTTPClient overrides the http client used for manifest and package
	// downloads. Defaults to http.DefaultClient.
	HTTPClient xhttp.Client

	// Fs overrides the filesystem, mainly for tests.
	Fs afero.Fs

	// Clock overrides the time source, mainly for tests.
	Clock clock.Clock
}

func (o *Options) applyDefaults() error {
	if o.AppName == "" {
		return fmt.Errorf("app name is required")
	}
	if o.DisplayName == "" {
		o.DisplayName = o.AppName
	}
	if o.SelfReleaseType == "" {
		o.SelfReleaseType = o.Channel.String()
	}
	if o.BaseDir == "" || o.ExecutableName == "" {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		if o.BaseDir == "" {
			o.BaseDir = filepath.Dir(exe)
		}
		if o.ExecutableName == "" {
			o.ExecutableName = filepath.Base(exe)
		}
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return nil
}

// EnvName composes the full environment variable name for the given suffix.
func (o Options) EnvName(suffix string) string {
	return "AUTOUPDATER_" + sanitizeEnvToken(o.AppName) + "_" + suffix
}

// UserAgent composes the update check user agent string.
func (o Options) UserAgent(installID string) string {
	ua := fmt.Sprintf("%s v%s", o.AppName, o.SelfVersion)
	if installID != "" {
		ua += " -" + installID
	}
	return ua
}

func sanitizeEnvToken(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return strings.ToUpper(mapped)
}
