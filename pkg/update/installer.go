package update

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/xhttp"
	"github.com/wuxler/upshift/pkg/util/xio"
	"github.com/wuxler/upshift/pkg/util/xos"
	"github.com/wuxler/upshift/pkg/xlog"
)

// DownloadAndUnpack downloads the package advertised by the remote manifest,
// verifies it, stages and verifies the unpacked tree, and promotes it to a
// versioned install folder. Candidate URLs are tried in order until one
// succeeds; per-candidate failures become error events. A path-escape
// violation inside an archive aborts the whole install.
//
// It returns true once a candidate has been promoted and the obsolete
// installs have been garbage collected.
func (u *Updater) DownloadAndUnpack(ctx context.Context, info *UpdateInfo) bool {
	candidates := u.downloadCandidates(info)
	if len(candidates) == 0 {
		u.emitError(errdefs.Newf(errdefs.ErrInvalidParameter, "manifest for %s has no download URLs", info.Version))
		return false
	}
	for _, candidate := range candidates {
		ok, fatal := u.tryCandidate(ctx, candidate, info)
		if ok {
			u.garbageCollect()
			return true
		}
		if fatal {
			return false
		}
	}
	return false
}

// downloadCandidates composes the ordered download URL list: each alternate
// mirror with its last path segment replaced by the package filename, then
// the manifest's own remote URLs.
func (u *Updater) downloadCandidates(info *UpdateInfo) []string {
	if len(info.RemoteURLs) == 0 {
		return nil
	}
	filename := packageFilename(info.RemoteURLs[0])
	var candidates []string
	for _, mirror := range u.opts.AlternateURLs {
		parsed, err := url.Parse(mirror)
		if err != nil {
			continue
		}
		parsed.Path = path.Join(path.Dir(parsed.Path), filename)
		candidates = append(candidates, parsed.String())
	}
	return append(candidates, info.RemoteURLs...)
}

func packageFilename(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		return path.Base(parsed.Path)
	}
	return path.Base(rawURL)
}

// tryCandidate runs the full download-verify-stage-promote pipeline for one
// URL. The second result reports a fatal condition that must not be retried
// on other mirrors.
func (u *Updater) tryCandidate(ctx context.Context, candidate string, info *UpdateInfo) (ok, fatal bool) {
	temper := xos.NewTemper("", u.opts.AppName+"-update-*")
	defer func() {
		if err := temper.Cleanup(); err != nil {
			xlog.Warnf("unable to clean up temp files: %+v", err)
		}
	}()

	archive, err := u.downloadPackage(ctx, candidate, info, temper)
	if err != nil {
		u.emitError(err)
		return false, false
	}
	defer xio.CloseAndSkipError(archive)

	stagingDir, err := temper.NewChild("staging-*").Path()
	if err != nil {
		u.emitError(errdefs.NewE(errdefs.ErrFilesystem, err))
		return false, false
	}
	if err := u.extractPackage(archive, stagingDir); err != nil {
		u.emitError(err)
		// A crafted archive is not a mirror hiccup. Do not retry elsewhere.
		return false, errors.Is(err, errdefs.ErrPathUnsafe)
	}
	if !u.VerifyUnpacked(stagingDir, info) {
		return false, false
	}
	if err := u.promote(info, stagingDir); err != nil {
		u.emitError(err)
		return false, false
	}
	return true, false
}

// downloadPackage fetches the candidate URL into a fresh temp file, emitting
// progress, and gates the result on the declared size and both digests.
func (u *Updater) downloadPackage(ctx context.Context, candidate string, info *UpdateInfo, temper xos.Temper) (*os.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	req.Header.Set("User-Agent", u.opts.UserAgent(u.installID))
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	defer xio.CloseAndSkipError(resp.Body)
	if err := xhttp.Success(resp); err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}

	file, err := temper.CreateTemp("package-*.zip")
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	measured := xio.NewMeasuredReader(resp.Body)
	written, err := io.Copy(file, u.progressReader(measured, info.CompressedSize))
	if err != nil {
		xio.CloseAndSkipError(file)
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	xlog.Debugf("downloaded %s: %d bytes, %.0f B/s", candidate, written, measured.BytesPer(time.Second))

	if written != info.CompressedSize {
		xio.CloseAndSkipError(file)
		return nil, errdefs.Newf(errdefs.ErrIntegrityMismatch,
			"size mismatch for %s: got %d, want %d", candidate, written, info.CompressedSize)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		xio.CloseAndSkipError(file)
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	digests, _, err := hashReader(file)
	if err != nil {
		xio.CloseAndSkipError(file)
		return nil, errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if digests.SHA256 != info.SHA256 || digests.MD5 != info.MD5 {
		xio.CloseAndSkipError(file)
		return nil, errdefs.Newf(errdefs.ErrIntegrityMismatch, "digest mismatch for %s", candidate)
	}
	return file, nil
}

type progressFunc func(p []byte) (int, error)

func (f progressFunc) Read(p []byte) (int, error) { return f(p) }

func (u *Updater) progressReader(r io.Reader, total int64) io.Reader {
	if u.opts.OnProgress == nil || total <= 0 {
		return r
	}
	var done int64
	return progressFunc(func(p []byte) (int, error) {
		n, err := r.Read(p)
		done += int64(n)
		u.emitProgress(float64(done) / float64(total))
		return n, err
	})
}

// extractPackage unpacks the verified archive into the staging directory,
// refusing members whose path is absolute or begins with "..".
func (u *Updater) extractPackage(archive *os.File, stagingDir string) error {
	stat, err := archive.Stat()
	if err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	reader, err := zip.NewReader(archive, stat.Size())
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			return errdefs.Newf(errdefs.ErrPathUnsafe, "archive member path escapes the extraction directory: %v", err)
		}
		return errdefs.NewE(errdefs.ErrFormat, err)
	}
	reader.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	for _, member := range reader.File {
		if err := u.extractMember(member, stagingDir); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) extractMember(member *zip.File, stagingDir string) error {
	name := member.Name
	if !safeMemberName(name) {
		return errdefs.Newf(errdefs.ErrPathUnsafe, "archive member %q escapes the extraction directory", name)
	}
	target := filepath.Join(stagingDir, filepath.FromSlash(strings.TrimSuffix(name, "/")))
	if strings.HasSuffix(name, "/") {
		return u.fs.MkdirAll(target, 0o755)
	}
	if err := u.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	src, err := member.Open()
	if err != nil {
		return errdefs.NewE(errdefs.ErrFormat, err)
	}
	defer xio.CloseAndSkipError(src)
	dst, err := u.fs.Create(target)
	if err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	defer xio.CloseAndSkipError(dst)
	// Bound the copy by the declared member size to defuse zip bombs.
	if _, err := xio.LimitCopy(dst, src, int64(member.UncompressedSize64)+1); err != nil {
		return errdefs.NewE(errdefs.ErrFormat, err)
	}
	return nil
}

// safeMemberName reports whether an archive member path stays inside the
// extraction directory: relative, no volume, no ".." segment in either
// separator style.
func safeMemberName(name string) bool {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	if strings.HasPrefix(name, `\`) || strings.HasPrefix(strings.ToLower(name), "..") {
		return false
	}
	for _, segment := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return false
		}
	}
	return true
}

// promote replaces the versioned install folder with the staged tree and
// points "current" at it. Replacement is best-effort, not transactional.
func (u *Updater) promote(info *UpdateInfo, stagingDir string) error {
	versionString := info.ParsedVersion().String()
	target := filepath.Join(u.installRoot, versionString)
	if ok, _ := u.fs.Exists(target); ok {
		if err := u.fs.RemoveAll(target); err != nil {
			return errdefs.NewE(errdefs.ErrFilesystem, err)
		}
	}
	if err := u.fs.MkdirAll(target, 0o755); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if err := u.copyTree(stagingDir, target); err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	if err := u.writeCurrentPointer(versionString); err != nil {
		return err
	}
	u.invalidateCatalog()
	xlog.Infof("installed %s %s into %s", u.opts.DisplayName, versionString, target)
	return nil
}

func (u *Updater) copyTree(srcDir, dstDir string) error {
	return u.fs.Walk(srcDir, func(srcPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, srcPath)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dstPath := filepath.Join(dstDir, rel)
		if fi.IsDir() {
			return u.fs.MkdirAll(dstPath, 0o755)
		}
		src, err := u.fs.Open(srcPath)
		if err != nil {
			return err
		}
		defer xio.CloseAndSkipError(src)
		dst, err := u.fs.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode())
		if err != nil {
			return err
		}
		defer xio.CloseAndSkipError(dst)
		_, err = io.Copy(dst, src)
		return err
	})
}

// garbageCollect removes obsolete installed versions. Failures are logged,
// never fatal.
func (u *Updater) garbageCollect() {
	for _, iv := range u.obsoleteVersions() {
		if err := u.fs.RemoveAll(iv.Folder); err != nil {
			xlog.Warnf("unable to remove obsolete install %s: %+v", iv.Folder, err)
			continue
		}
		xlog.Infof("removed obsolete install %s", iv.Folder)
	}
	u.invalidateCatalog()
}
