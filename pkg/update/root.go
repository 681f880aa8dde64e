package update

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/homedir"
	"github.com/wuxler/upshift/pkg/xlog"
)

const (
	updatesDirName  = "updates"
	readmeFilename  = "README.txt"
	installFilename = "installation.txt"

	// CurrentPointerFilename names the text file in the install root holding
	// the version string of the currently promoted install.
	CurrentPointerFilename = "current"
)

const readmeText = `This folder contains automatically installed application updates.

Each subfolder holds one complete version, verified against its signed
manifest before it is ever launched. The "current" file names the version
that was installed most recently. Obsolete versions are removed
automatically; removing this folder by hand only means updates will be
downloaded again.
`

// resolveInstallRoot selects the writable directory used to store unpacked
// update installs. The environment override wins verbatim; otherwise three
// candidate lists are probed in order: overrides (must already exist), legacy
// locations (must exist and be non-empty), and attempts (created on demand).
func (u *Updater) resolveInstallRoot() (string, error) {
	if override := os.Getenv(u.opts.EnvName(EnvSuffixUpdateRoot)); override != "" {
		expanded, err := homedir.Expand(os.ExpandEnv(override))
		if err != nil {
			return "", errdefs.NewE(errdefs.ErrInvalidParameter, err)
		}
		if err := u.fs.MkdirAll(expanded, 0o755); err != nil {
			return "", errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		return expanded, nil
	}

	overrides := u.overrideCandidates()
	for _, dir := range overrides {
		if ok, _ := u.fs.DirExists(dir); !ok {
			continue
		}
		if u.probeWritable(dir) {
			return dir, nil
		}
	}

	for _, dir := range u.legacyCandidates() {
		if ok, _ := u.fs.DirExists(dir); !ok {
			continue
		}
		if empty, err := u.fs.IsEmpty(dir); err != nil || empty {
			continue
		}
		if u.probeWritable(dir) {
			return dir, nil
		}
	}

	for _, dir := range u.attemptCandidates(overrides) {
		if err := u.fs.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		if u.probeWritable(dir) {
			return dir, nil
		}
	}

	return "", errdefs.Newf(errdefs.ErrFilesystem, "no writable update root found for %s", u.opts.AppName)
}

// overrideCandidates returns the highest-preference locations; the base dir
// first, then per-user platform locations.
func (u *Updater) overrideCandidates() []string {
	candidates := []string{filepath.Join(u.baseDir, updatesDirName)}
	for _, dir := range userDataDirs() {
		candidates = append(candidates, filepath.Join(dir, u.opts.AppName, updatesDirName))
	}
	return candidates
}

// legacyCandidates returns prior well-known locations, honored only when they
// already hold installed content.
func (u *Updater) legacyCandidates() []string {
	var candidates []string
	if pf := programFilesDir(); pf != "" {
		candidates = append(candidates, filepath.Join(pf, u.opts.AppName, updatesDirName))
	}
	if lad := localAppDataDir(); lad != "" {
		candidates = append(candidates, filepath.Join(lad, u.opts.AppName, updatesDirName))
	}
	return candidates
}

// attemptCandidates returns the created-if-needed fallbacks: the base dir
// (unless it lives under Program Files), the system-wide data dir, then the
// per-user overrides again.
func (u *Updater) attemptCandidates(overrides []string) []string {
	var candidates []string
	pf := programFilesDir()
	underProgramFiles := pf != "" && strings.HasPrefix(strings.ToLower(u.baseDir), strings.ToLower(pf))
	if !underProgramFiles {
		candidates = append(candidates, filepath.Join(u.baseDir, updatesDirName))
	}
	candidates = append(candidates, filepath.Join(commonAppDataDir(), u.opts.AppName, updatesDirName))
	if len(overrides) > 1 {
		candidates = append(candidates, overrides[1:]...)
	}
	return candidates
}

// probeWritable tests a candidate by creating and removing a probe directory
// inside it. Failure is non-fatal per candidate.
func (u *Updater) probeWritable(dir string) bool {
	probe := filepath.Join(dir, "test-"+u.clock.Now().UTC().Format("20060102T150405.000000000"))
	if err := u.fs.Mkdir(probe, 0o755); err != nil {
		return false
	}
	if err := u.fs.Remove(probe); err != nil {
		xlog.Warnf("unable to remove probe directory %s: %+v", probe, err)
	}
	return true
}

// seedInstallRoot writes the root's identity files when missing and returns
// the install id: the first non-blank line of installation.txt.
func (u *Updater) seedInstallRoot() string {
	readme := filepath.Join(u.installRoot, readmeFilename)
	if ok, _ := u.fs.Exists(readme); !ok {
		if err := u.fs.WriteFile(readme, []byte(readmeText), 0o644); err != nil {
			u.emitError(errdefs.NewE(errdefs.ErrFilesystem, err))
		}
	}

	installFile := filepath.Join(u.installRoot, installFilename)
	if ok, _ := u.fs.Exists(installFile); !ok {
		content := fmt.Sprintf("%s\n\nThis file identifies this installation when checking for updates.\n", newInstallID())
		if err := u.fs.WriteFile(installFile, []byte(content), 0o644); err != nil {
			u.emitError(errdefs.NewE(errdefs.ErrFilesystem, err))
			return ""
		}
	}

	data, err := u.fs.ReadFile(installFile)
	if err != nil {
		u.emitError(errdefs.NewE(errdefs.ErrFilesystem, err))
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func newInstallID() string {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	return hex.EncodeToString(raw)
}

// userDataDirs returns the per-user application data directories for the
// current platform, most specific first.
func userDataDirs() []string {
	switch runtime.GOOS {
	case "windows":
		var dirs []string
		if lad := os.Getenv("LOCALAPPDATA"); lad != "" {
			dirs = append(dirs, lad)
		}
		if rad := os.Getenv("APPDATA"); rad != "" {
			dirs = append(dirs, rad)
		}
		return dirs
	case "darwin":
		var dirs []string
		if home, err := homedir.Get(); err == nil {
			dirs = append(dirs, filepath.Join(home, "Library", "Application Support"))
		}
		if cfg, err := os.UserConfigDir(); err == nil {
			dirs = append(dirs, cfg)
		}
		return dirs
	default:
		if cfg, err := os.UserConfigDir(); err == nil {
			return []string{cfg}
		}
		return nil
	}
}

func programFilesDir() string {
	if runtime.GOOS != "windows" {
		return ""
	}
	return os.Getenv("ProgramFiles")
}

func localAppDataDir() string {
	if runtime.GOOS != "windows" {
		return ""
	}
	return os.Getenv("LOCALAPPDATA")
}

// commonAppDataDir returns the system-wide application data directory.
func commonAppDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if pd := os.Getenv("ProgramData"); pd != "" {
			return pd
		}
		return `C:\ProgramData`
	case "darwin":
		return "/Library/Application Support"
	default:
		return "/var/lib"
	}
}
