package update

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/xcache"
)

// InstalledVersion is one side-installed update: an absolute folder below the
// install root paired with its embedded signed manifest.
type InstalledVersion struct {
	Folder   string
	Manifest *UpdateInfo
}

// ParsedVersion returns the manifest's parsed version.
func (iv InstalledVersion) ParsedVersion() Version {
	return iv.Manifest.ParsedVersion()
}

// ListInstalledVersions scans the install root for candidate installations
// with a readable signed manifest, newest first. Folders without a valid
// manifest are skipped, each failed manifest read being reported as an error
// event: an unsigned install is not listed as an install.
func (u *Updater) ListInstalledVersions() []InstalledVersion {
	entries, err := u.fs.ReadDir(u.installRoot)
	if err != nil {
		u.emitError(errdefs.NewE(errdefs.ErrFilesystem, err))
		return nil
	}
	var installed []InstalledVersion
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(u.installRoot, entry.Name())
		manifest := u.ReadInstalledManifest(folder)
		if manifest == nil {
			continue
		}
		installed = append(installed, InstalledVersion{Folder: folder, Manifest: manifest})
	}
	slices.SortFunc(installed, func(a, b InstalledVersion) int {
		return b.ParsedVersion().Compare(a.ParsedVersion())
	})
	return installed
}

// CurrentVersion reads the "current" pointer file, returning the version
// string it names.
func (u *Updater) CurrentVersion() (string, bool) {
	data, err := u.fs.ReadFile(filepath.Join(u.installRoot, CurrentPointerFilename))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

func (u *Updater) writeCurrentPointer(version string) error {
	path := filepath.Join(u.installRoot, CurrentPointerFilename)
	if err := u.fs.WriteFile(path, []byte(version), 0o644); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	return nil
}

// HasUpdateInstalled reports whether a verified installed version newer than
// the running one exists. The result is cached together with the best
// version and invalidated on promote or forced recheck.
func (u *Updater) HasUpdateInstalled(forceRecheck bool) bool {
	folder, _ := u.GetBestVersion(forceRecheck)
	return folder != u.baseDir
}

// GetBestVersion chooses the version to run: the baseline in-place install,
// the highest verified installed update, or the verified target of the
// "current" pointer, whichever is newest. The choice is cached until promote
// or a forced recheck invalidates it.
func (u *Updater) GetBestVersion(forceRecheck bool) (string, Version) {
	u.mu.Lock()
	if forceRecheck {
		u.best = nil
		u.manifests = xcache.NewMemory[*UpdateInfo]()
	}
	if u.best != nil {
		defer u.mu.Unlock()
		return u.best.folder, u.best.version
	}
	u.mu.Unlock()

	best := bestVersion{folder: u.baseDir, version: u.SelfVersion()}

	// Highest verified installed update wins; the list is newest first.
	for _, iv := range u.ListInstalledVersions() {
		if !iv.ParsedVersion().After(best.version) {
			break
		}
		if u.VerifyUnpacked(iv.Folder, nil) {
			best = bestVersion{folder: iv.Folder, version: iv.ParsedVersion()}
			break
		}
	}

	if name, ok := u.CurrentVersion(); ok {
		folder := filepath.Join(u.installRoot, name)
		if manifest := u.ReadInstalledManifest(folder); manifest != nil {
			if manifest.ParsedVersion().After(best.version) && u.VerifyUnpacked(folder, nil) {
				best = bestVersion{folder: folder, version: manifest.ParsedVersion()}
			}
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.best = &best
	return best.folder, best.version
}

// invalidateCatalog drops the cached best version and all cached manifest
// reads. Called after a promote and by forced rechecks.
func (u *Updater) invalidateCatalog() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.best = nil
	u.manifests = xcache.NewMemory[*UpdateInfo]()
}

// obsoleteVersions returns the installed versions eligible for garbage
// collection: everything but the newest install, the current pointer target
// and the running version. The newest obsolete entry is retained as well.
func (u *Updater) obsoleteVersions() []InstalledVersion {
	installed := u.ListInstalledVersions()
	if len(installed) == 0 {
		return nil
	}
	currentName, _ := u.CurrentVersion()
	selfVersion := u.SelfVersion()

	newest := installed[0]
	obsolete := lo.Filter(installed[1:], func(iv InstalledVersion, _ int) bool {
		if iv.Folder == newest.Folder {
			return false
		}
		if currentName != "" && filepath.Base(iv.Folder) == currentName {
			return false
		}
		if iv.ParsedVersion().Compare(selfVersion) == 0 {
			return false
		}
		return true
	})
	if len(obsolete) == 0 {
		return nil
	}
	// Keep the most recent obsolete install around as well.
	return obsolete[1:]
}
