// Package update implements a self-updating application runtime: it fetches
// signed update manifests, downloads and verifies package archives, maintains
// a catalog of side-installed versions, and supervises the wrapped
// application, relaunching it from the newest verified install.
package update

import (
	"crypto/rsa"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"

	"github.com/wuxler/upshift/pkg/util/xcache"
	"github.com/wuxler/upshift/pkg/util/xhttp"
	"github.com/wuxler/upshift/pkg/xlog"
)

// Updater is the process-wide update context. It owns the resolved install
// root and everything below it; the base install directory is read-only.
// A single Updater per install root is assumed: concurrent supervisors on the
// same root are not supported.
type Updater struct {
	opts   Options
	fs     afero.Afero
	clock  clock.Clock
	client xhttp.Client
	pub    *rsa.PublicKey

	baseDir     string
	installRoot string
	installID   string

	manifests xcache.Cache[*UpdateInfo]

	mu        sync.Mutex
	lastCheck *UpdateInfo
	best      *bestVersion
}

type bestVersion struct {
	folder  string
	version Version
}

// New creates an Updater: it parses the configured public key, resolves the
// install root (probing candidates for writability) and seeds the root's
// identity files on first use.
func New(opts Options) (*Updater, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	pub, err := ParsePublicKeyPEM(opts.PublicKeyPEM)
	if err != nil {
		return nil, err
	}
	u := &Updater{
		opts:      opts,
		fs:        afero.Afero{Fs: opts.Fs},
		clock:     opts.Clock,
		client:    opts.HTTPClient,
		pub:       pub,
		baseDir:   opts.BaseDir,
		manifests: xcache.NewMemory[*UpdateInfo](),
	}
	root, err := u.resolveInstallRoot()
	if err != nil {
		return nil, err
	}
	u.installRoot = root
	u.installID = u.seedInstallRoot()
	return u, nil
}

// InstallRoot returns the resolved managed update directory.
func (u *Updater) InstallRoot() string { return u.installRoot }

// BaseDir returns the original application directory.
func (u *Updater) BaseDir() string { return u.baseDir }

// InstallID returns the opaque identifier sent with update checks.
func (u *Updater) InstallID() string { return u.installID }

// SelfVersion returns the parsed version of the running application.
func (u *Updater) SelfVersion() Version { return ParseVersion(u.opts.SelfVersion) }

// LastCheckResult returns the manifest found by the most recent successful
// check, if any.
func (u *Updater) LastCheckResult() *UpdateInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastCheck
}

func (u *Updater) setLastCheck(info *UpdateInfo) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastCheck = info
}

// emitError forwards an error event to the configured listener, or logs it.
// Error events never short-circuit the supervisor loop.
func (u *Updater) emitError(err error) {
	if err == nil {
		return
	}
	if u.opts.OnError != nil {
		u.opts.OnError(err)
		return
	}
	xlog.Errorf("%s updater: %+v", u.opts.AppName, err)
}

func (u *Updater) emitProgress(fraction float64) {
	if u.opts.OnProgress == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	u.opts.OnProgress(fraction)
}
