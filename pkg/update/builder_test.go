package update_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/update"
)

func TestBuildPackage(t *testing.T) {
	u := newTestUpdater(t)
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "app.bin"), []byte("app payload"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "lib", "data.txt"), []byte("data"), 0o644))

	outDir := t.TempDir()
	base := &update.UpdateInfo{
		DisplayName: "Demo App",
		Version:     "2.1.0.0",
		ReleaseType: "Stable",
		ReleaseTime: testReleaseTime,
		RemoteURLs:  []string{"https://example.com/stable/package.zip"},
	}
	remote, err := u.BuildPackage(context.Background(), srcDir, outDir, base, testKey)
	require.NoError(t, err)

	// Remote manifest shape: digests and URLs, no file table.
	assert.True(t, remote.IsRemote())
	assert.Empty(t, remote.Files)
	assert.Zero(t, remote.UncompressedSize)
	assert.NotEmpty(t, remote.SHA256)
	assert.NotEmpty(t, remote.MD5)
	assert.Equal(t, base.RemoteURLs, remote.RemoteURLs)

	archive, err := os.ReadFile(filepath.Join(outDir, update.PackageFilename))
	require.NoError(t, err)
	assert.Equal(t, int64(len(archive)), remote.CompressedSize)
	sha, md := base64Digests(archive)
	assert.Equal(t, sha, remote.SHA256)
	assert.Equal(t, md, remote.MD5)

	// The archive carries a signed embedded manifest describing every file.
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, member := range zr.File {
		names[member.Name] = true
	}
	assert.True(t, names["app.bin"])
	assert.True(t, names["lib/data.txt"])
	require.True(t, names[update.ManifestFilename])

	member, err := zr.Open(update.ManifestFilename)
	require.NoError(t, err)
	defer member.Close()
	embedded, err := update.ReadSignedManifest(member, &testKey.PublicKey)
	require.NoError(t, err)
	assert.True(t, embedded.IsEmbedded())
	assert.Empty(t, embedded.RemoteURLs)
	assert.Equal(t, int64(len("app payload")+len("data")), embedded.UncompressedSize)
}

func TestBuildPackage_IgnoreEntries(t *testing.T) {
	u := newTestUpdater(t)
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "app.bin"), []byte("app payload"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "logs", "old.log"), []byte("noise"), 0o644))

	base := &update.UpdateInfo{
		DisplayName: "Demo App",
		Version:     "2.1.0.0",
		ReleaseType: "Stable",
		ReleaseTime: testReleaseTime,
		Files: []update.FileEntry{
			{Path: "logs/", Ignore: true},
		},
	}
	outDir := t.TempDir()
	_, err := u.BuildPackage(context.Background(), srcDir, outDir, base, testKey)
	require.NoError(t, err)

	archive, err := os.ReadFile(filepath.Join(outDir, update.PackageFilename))
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	for _, member := range zr.File {
		assert.NotContains(t, member.Name, "logs/old.log")
	}

	member, err := zr.Open(update.ManifestFilename)
	require.NoError(t, err)
	defer member.Close()
	embedded, err := update.ReadSignedManifest(member, &testKey.PublicKey)
	require.NoError(t, err)

	var ignored []update.FileEntry
	for _, entry := range embedded.Files {
		if entry.Ignore {
			ignored = append(ignored, entry)
		}
	}
	require.Len(t, ignored, 1)
	assert.Equal(t, "logs/", ignored[0].Path)
}

func TestBuildPackage_FillsReleaseTime(t *testing.T) {
	u := newTestUpdater(t)
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "app.bin"), []byte("x"), 0o644))

	base := &update.UpdateInfo{
		DisplayName: "Demo App",
		Version:     "2.1.0.0",
		ReleaseType: "Stable",
	}
	remote, err := u.BuildPackage(context.Background(), srcDir, t.TempDir(), base, testKey)
	require.NoError(t, err)
	assert.False(t, remote.ReleaseTime.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), remote.ReleaseTime, time.Minute)
}
