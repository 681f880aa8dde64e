package update

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rsa"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/smallnest/deepcopy"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/xio"
	"github.com/wuxler/upshift/pkg/xlog"
)

// BuildPackage is the inverse of DownloadAndUnpack: it packs the input folder
// into a signed package archive and writes "package.zip" plus the signed
// remote manifest into the output folder. The base manifest supplies release
// metadata and the ignore entries; its remote URLs are carried over to the
// returned remote manifest only.
func (u *Updater) BuildPackage(ctx context.Context, inputDir, outputDir string, base *UpdateInfo, key *rsa.PrivateKey) (*UpdateInfo, error) {
	local := deepcopy.Copy(base) //nolint:errcheck // Copy returns the input type
	if local.ReleaseTime.IsZero() || local.ReleaseTime.Equal(time.Unix(0, 0)) {
		local.ReleaseTime = u.clock.Now().UTC()
	}
	ignored := splitIgnoreEntries(base.Files)
	local.Files = nil
	local.RemoteURLs = nil
	local.UncompressedSize = 0

	if err := u.fs.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	archivePath := filepath.Join(outputDir, PackageFilename)
	archive, err := u.fs.Create(archivePath)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}

	zw := zip.NewWriter(archive)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	if err := u.packTree(ctx, zw, inputDir, local, ignored); err != nil {
		xio.CloseAndSkipError(zw)
		xio.CloseAndSkipError(archive)
		return nil, err
	}

	// Ignore entries survive the rebuild untouched.
	local.Files = append(local.Files, ignored...)

	signedManifest := &bytes.Buffer{}
	if err := WriteSignedManifest(signedManifest, local, key); err != nil {
		xio.CloseAndSkipError(zw)
		xio.CloseAndSkipError(archive)
		return nil, err
	}
	member, err := zw.Create(ManifestFilename)
	if err != nil {
		xio.CloseAndSkipError(zw)
		xio.CloseAndSkipError(archive)
		return nil, errdefs.NewE(errdefs.ErrFormat, err)
	}
	if _, err := member.Write(signedManifest.Bytes()); err != nil {
		xio.CloseAndSkipError(zw)
		xio.CloseAndSkipError(archive)
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if err := zw.Close(); err != nil {
		xio.CloseAndSkipError(archive)
		return nil, errdefs.NewE(errdefs.ErrFormat, err)
	}
	if err := archive.Close(); err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}

	remote, err := u.finishRemoteManifest(archivePath, local, base.RemoteURLs)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(outputDir, ManifestFilename)
	out, err := u.fs.Create(manifestPath)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	defer xio.CloseAndSkipError(out)
	if err := WriteSignedManifest(out, remote, key); err != nil {
		return nil, err
	}
	xlog.Infof("built package %s (%d bytes compressed)", archivePath, remote.CompressedSize)
	return remote, nil
}

// packTree walks the input folder and adds every non-ignored file to the
// archive, recording a manifest entry with both digests per file.
func (u *Updater) packTree(ctx context.Context, zw *zip.Writer, inputDir string, local *UpdateInfo, ignored []FileEntry) error {
	ignorePrefixes := map[string]struct{}{}
	ignoreExact := map[string]struct{}{}
	for _, entry := range ignored {
		if entry.IsDirectory() {
			ignorePrefixes[normalizeTreePath(entry.Path)+"/"] = struct{}{}
		} else {
			ignoreExact[normalizeTreePath(entry.Path)] = struct{}{}
		}
	}

	return u.fs.Walk(inputDir, func(srcPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(inputDir, srcPath)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		key := normalizeTreePath(name)

		if fi.IsDir() {
			if _, ok := ignorePrefixes[key+"/"]; ok {
				return filepath.SkipDir
			}
			if _, err := zw.Create(name + "/"); err != nil {
				return errdefs.NewE(errdefs.ErrFormat, err)
			}
			local.Files = append(local.Files, FileEntry{
				Path:          name + "/",
				LastWriteTime: fi.ModTime().UTC(),
			})
			return nil
		}

		if name == ManifestFilename {
			return nil
		}
		if _, ok := ignoreExact[key]; ok {
			return nil
		}
		if underPrefixSet(key, ignorePrefixes) {
			return nil
		}

		data, err := u.fs.ReadFile(srcPath)
		if err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		member, err := zw.Create(name)
		if err != nil {
			return errdefs.NewE(errdefs.ErrFormat, err)
		}
		if _, err := member.Write(data); err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
		digests := hashBytes(data)
		local.UncompressedSize += int64(len(data))
		local.Files = append(local.Files, FileEntry{
			Path:          name,
			LastWriteTime: fi.ModTime().UTC(),
			SHA256:        digests.SHA256,
			MD5:           digests.MD5,
		})
		return nil
	})
}

// finishRemoteManifest derives the remote manifest from the signed archive:
// compressed size and archive digests set, per-file table cleared.
func (u *Updater) finishRemoteManifest(archivePath string, local *UpdateInfo, remoteURLs []string) (*UpdateInfo, error) {
	digests, size, err := u.hashFileWithSize(archivePath)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	remote := deepcopy.Copy(local) //nolint:errcheck // Copy returns the input type
	remote.Files = nil
	remote.UncompressedSize = 0
	remote.CompressedSize = size
	remote.SHA256 = digests.SHA256
	remote.MD5 = digests.MD5
	remote.RemoteURLs = remoteURLs
	return remote, nil
}

func (u *Updater) hashFileWithSize(path string) (digestPair, int64, error) {
	f, err := u.fs.Open(path)
	if err != nil {
		return digestPair{}, 0, err
	}
	defer xio.CloseAndSkipError(f)
	return hashReader(f)
}

func splitIgnoreEntries(entries []FileEntry) []FileEntry {
	var ignored []FileEntry
	for _, entry := range entries {
		if entry.Ignore {
			ignored = append(ignored, entry)
		}
	}
	return ignored
}

func underPrefixSet(key string, prefixes map[string]struct{}) bool {
	for prefix := range prefixes {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
