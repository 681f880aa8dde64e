package update_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/update"
)

func TestVerifyUnpacked_OK(t *testing.T) {
	u := newTestUpdater(t)
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin":      "binary content",
		"lib/data.txt": "some data",
	})

	assert.True(t, u.VerifyUnpacked(dir, nil))
}

func TestVerifyUnpacked_ModifiedFile(t *testing.T) {
	var errs []string
	u := newTestUpdater(t, func(o *update.Options) { o.OnError = collectErrors(&errs) })
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin": "binary content",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), []byte("tampered"), 0o644))

	assert.False(t, u.VerifyUnpacked(dir, nil))
	assert.True(t, containsError(errs, "digest mismatch"))
}

func TestVerifyUnpacked_UnexpectedFile(t *testing.T) {
	var errs []string
	u := newTestUpdater(t, func(o *update.Options) { o.OnError = collectErrors(&errs) })
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin": "binary content",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("planted"), 0o644))

	assert.False(t, u.VerifyUnpacked(dir, nil))
	assert.True(t, containsError(errs, "unexpected file"))
}

func TestVerifyUnpacked_MissingFile(t *testing.T) {
	var errs []string
	u := newTestUpdater(t, func(o *update.Options) { o.OnError = collectErrors(&errs) })
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin": "binary content",
		"gone.txt": "will be deleted",
	})
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.txt")))

	assert.False(t, u.VerifyUnpacked(dir, nil))
	assert.True(t, containsError(errs, "missing files"))
}

func TestVerifyUnpacked_IgnorePrefix(t *testing.T) {
	u := newTestUpdater(t)
	dir := t.TempDir()

	info := update.UpdateInfo{Version: "2.0.0.0"}
	info.Files = append(info.Files, update.FileEntry{Path: "logs/", Ignore: true})
	writeInstall(t, dir, info, map[string]string{
		"app.bin": "binary content",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "trace.log"), []byte("noise"), 0o644))

	assert.True(t, u.VerifyUnpacked(dir, nil))
}

func TestVerifyUnpacked_IgnoredFileMayBeAbsentOrPresent(t *testing.T) {
	u := newTestUpdater(t)
	dir := t.TempDir()

	info := update.UpdateInfo{Version: "2.0.0.0"}
	info.Files = append(info.Files, update.FileEntry{Path: "settings.json", Ignore: true})
	writeInstall(t, dir, info, map[string]string{
		"app.bin": "binary content",
	})

	assert.True(t, u.VerifyUnpacked(dir, nil), "ignored file absent")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{}"), 0o644))
	assert.True(t, u.VerifyUnpacked(dir, nil), "ignored file present")
}

func TestVerifyUnpacked_Webroot(t *testing.T) {
	u := newTestUpdater(t, func(o *update.Options) { o.IgnoreWebroot = true })
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin": "binary content",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "webroot", "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webroot", "assets", "x.css"), []byte("body{}"), 0o644))

	assert.True(t, u.VerifyUnpacked(dir, nil))
}

func TestVerifyUnpacked_IdentityMismatch(t *testing.T) {
	var errs []string
	u := newTestUpdater(t, func(o *update.Options) { o.OnError = collectErrors(&errs) })
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "2.0.0.0"}, map[string]string{
		"app.bin": "binary content",
	})

	expected := &update.UpdateInfo{DisplayName: "Another App", ReleaseTime: testReleaseTime}
	assert.False(t, u.VerifyUnpacked(dir, expected))
	assert.True(t, containsError(errs, "identity mismatch"))
}

func TestVerifyUnpacked_NoManifest(t *testing.T) {
	var errs []string
	u := newTestUpdater(t, func(o *update.Options) { o.OnError = collectErrors(&errs) })

	assert.False(t, u.VerifyUnpacked(t.TempDir(), nil))
	assert.NotEmpty(t, errs)
}

func TestReadInstalledManifest(t *testing.T) {
	u := newTestUpdater(t)
	dir := t.TempDir()
	writeInstall(t, dir, update.UpdateInfo{Version: "3.1.4.1"}, map[string]string{"a": "b"})

	manifest := u.ReadInstalledManifest(dir)
	require.NotNil(t, manifest)
	assert.Equal(t, "3.1.4.1", manifest.Version)
	assert.True(t, manifest.IsEmbedded())

	assert.Nil(t, u.ReadInstalledManifest(t.TempDir()))
}
