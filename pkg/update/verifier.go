package update

import (
	"bytes"
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/xcache"
	"github.com/wuxler/upshift/pkg/xlog"
)

const webrootDirName = "webroot"

// ReadInstalledManifest opens the signed manifest inside the given install
// folder. It returns nil when the file is missing, the signature is invalid
// or parsing fails; failures surface as error events only. Reads are cached
// per folder until the catalog is invalidated.
func (u *Updater) ReadInstalledManifest(folder string) *UpdateInfo {
	info, ok := u.manifests.Get(context.Background(), folder,
		xcache.WithLoader(func(_ context.Context, key string) (*UpdateInfo, bool) {
			loaded, err := u.readManifestFile(filepath.Join(key, ManifestFilename))
			if err != nil {
				u.emitError(err)
				return nil, false
			}
			return loaded, true
		}))
	if !ok {
		return nil
	}
	return info
}

func (u *Updater) readManifestFile(path string) (*UpdateInfo, error) {
	data, err := u.fs.ReadFile(path)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrNotFound, err)
	}
	return ReadSignedManifest(bytes.NewReader(data), u.pub)
}

// VerifyUnpacked validates an unpacked install directory against its embedded
// signed manifest: every non-ignored file entry must exist with matching dual
// digests, and every on-disk file must be either expected or covered by an
// ignore prefix. When expected is given, the embedded manifest must also
// match its identity.
func (u *Updater) VerifyUnpacked(folder string, expected *UpdateInfo) bool {
	if err := u.verifyUnpacked(folder, expected); err != nil {
		u.emitError(errdefs.NewE(errdefs.ErrVerificationFailed, err))
		return false
	}
	return true
}

func (u *Updater) verifyUnpacked(folder string, expected *UpdateInfo) error {
	manifestPath := filepath.Join(folder, ManifestFilename)
	signedBytes, err := u.fs.ReadFile(manifestPath)
	if err != nil {
		return errdefs.NewE(errdefs.ErrNotFound, err)
	}
	manifest, err := ReadSignedManifest(bytes.NewReader(signedBytes), u.pub)
	if err != nil {
		return err
	}
	if expected != nil {
		if manifest.DisplayName != expected.DisplayName || !manifest.ReleaseTime.Equal(expected.ReleaseTime) {
			return errdefs.Newf(errdefs.ErrVerificationFailed,
				"embedded manifest identity mismatch: got %q @ %s", manifest.DisplayName, manifest.ReleaseTime)
		}
	}

	// The signed manifest file itself is part of the verified tree.
	selfEntry := FileEntry{Path: ManifestFilename}
	selfDigests := hashBytes(signedBytes)
	selfEntry.SHA256, selfEntry.MD5 = selfDigests.SHA256, selfDigests.MD5

	// Verification is file-scoped: directory entries carry no digests, so
	// only their ignore markers matter here.
	expectedFiles := map[string]FileEntry{}
	ignoreExact := map[string]struct{}{}
	var ignorePrefixes []string
	for _, entry := range append(manifest.Files, selfEntry) {
		key := normalizeTreePath(entry.Path)
		switch {
		case entry.Ignore && entry.IsDirectory():
			ignorePrefixes = append(ignorePrefixes, key+"/")
		case entry.Ignore:
			ignoreExact[key] = struct{}{}
		case entry.IsDirectory():
			// digest-less, nothing to verify
		default:
			expectedFiles[key] = entry
		}
	}

	walkErr := afero.Walk(u.fs.Fs, folder, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == folder {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		key := normalizeTreePath(filepath.ToSlash(rel))

		if info.IsDir() {
			if u.skipWebroot(key) || underPrefix(key+"/", ignorePrefixes) {
				return filepath.SkipDir
			}
			return nil
		}

		if u.skipWebroot(key) {
			return nil
		}
		if want, ok := expectedFiles[key]; ok {
			got, err := u.hashFile(path)
			if err != nil {
				return err
			}
			if got.SHA256 != want.SHA256 || got.MD5 != want.MD5 {
				return errdefs.Newf(errdefs.ErrIntegrityMismatch, "digest mismatch for %s", rel)
			}
			delete(expectedFiles, key)
			return nil
		}
		if _, ok := ignoreExact[key]; ok {
			return nil
		}
		if underPrefix(key, ignorePrefixes) {
			return nil
		}
		return errdefs.Newf(errdefs.ErrVerificationFailed, "unexpected file %s", rel)
	})
	if walkErr != nil {
		return walkErr
	}

	var missing []string
	for key := range expectedFiles {
		if u.skipWebroot(key) {
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) > 0 {
		return errdefs.Newf(errdefs.ErrVerificationFailed, "missing files: %s", strings.Join(missing, ", "))
	}
	xlog.Debugf("verified unpacked install at %s (%s)", folder, manifest.Version)
	return nil
}

func (u *Updater) skipWebroot(key string) bool {
	if !u.opts.IgnoreWebroot {
		return false
	}
	return key == webrootDirName || strings.HasPrefix(key, webrootDirName+"/")
}

// normalizeTreePath canonicalizes a manifest or on-disk relative path to a
// slash separated comparison key. Filename comparison is case-insensitive on
// Windows, matching the platform's filename comparer.
func normalizeTreePath(p string) string {
	p = strings.TrimSuffix(strings.TrimPrefix(p, "/"), "/")
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

func underPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
