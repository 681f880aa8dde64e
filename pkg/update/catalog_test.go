package update_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListInstalledVersions(t *testing.T) {
	u := newTestUpdater(t)
	makeInstalledVersion(t, u, "1.5.0.0", map[string]string{"app": "v1.5"})
	makeInstalledVersion(t, u, "2.0.0.0", map[string]string{"app": "v2.0"})

	// Folders without a valid signed manifest are invisible.
	require.NoError(t, os.MkdirAll(filepath.Join(u.InstallRoot(), "3.0.0.0"), 0o755))

	installed := u.ListInstalledVersions()
	require.Len(t, installed, 2)
	assert.Equal(t, "2.0.0.0", installed[0].Manifest.Version)
	assert.Equal(t, "1.5.0.0", installed[1].Manifest.Version)
}

func TestGetBestVersion_Baseline(t *testing.T) {
	u := newTestUpdater(t)

	folder, version := u.GetBestVersion(false)
	assert.Equal(t, u.BaseDir(), folder)
	assert.Equal(t, "1.0.0.0", version.String())
	assert.False(t, u.HasUpdateInstalled(false))
}

func TestGetBestVersion_PrefersNewestVerified(t *testing.T) {
	u := newTestUpdater(t)
	makeInstalledVersion(t, u, "1.5.0.0", map[string]string{"app": "v1.5"})
	newest := makeInstalledVersion(t, u, "2.0.0.0", map[string]string{"app": "v2.0"})

	folder, version := u.GetBestVersion(false)
	assert.Equal(t, newest, folder)
	assert.Equal(t, "2.0.0.0", version.String())
	assert.True(t, u.HasUpdateInstalled(false))
}

func TestGetBestVersion_SkipsTamperedInstall(t *testing.T) {
	u := newTestUpdater(t)
	older := makeInstalledVersion(t, u, "1.5.0.0", map[string]string{"app": "v1.5"})
	newest := makeInstalledVersion(t, u, "2.0.0.0", map[string]string{"app": "v2.0"})
	require.NoError(t, os.WriteFile(filepath.Join(newest, "app"), []byte("evil"), 0o644))

	folder, version := u.GetBestVersion(false)
	assert.Equal(t, older, folder)
	assert.Equal(t, "1.5.0.0", version.String())
}

func TestGetBestVersion_NeverOlderThanBaseline(t *testing.T) {
	u := newTestUpdater(t)
	makeInstalledVersion(t, u, "0.9.0.0", map[string]string{"app": "ancient"})

	folder, version := u.GetBestVersion(false)
	assert.Equal(t, u.BaseDir(), folder)
	assert.Equal(t, "1.0.0.0", version.String())
}

func TestGetBestVersion_CurrentPointer(t *testing.T) {
	u := newTestUpdater(t)
	// The current pointer names the installed version; the selector resolves
	// it to that version's folder.
	target := makeInstalledVersion(t, u, "2.5.0.0", map[string]string{"app": "v2.5"})
	writeCurrentPointer(t, u, "2.5.0.0")

	folder, version := u.GetBestVersion(true)
	assert.Equal(t, target, folder)
	assert.Equal(t, "2.5.0.0", version.String())
}

func TestGetBestVersion_Cached(t *testing.T) {
	u := newTestUpdater(t)
	folder, _ := u.GetBestVersion(false)
	assert.Equal(t, u.BaseDir(), folder)

	// A version installed behind the cache's back is only seen on recheck.
	installed := makeInstalledVersion(t, u, "2.0.0.0", map[string]string{"app": "v2"})
	folder, _ = u.GetBestVersion(false)
	assert.Equal(t, u.BaseDir(), folder)

	folder, _ = u.GetBestVersion(true)
	assert.Equal(t, installed, folder)
}

func TestCurrentVersion(t *testing.T) {
	u := newTestUpdater(t)
	_, ok := u.CurrentVersion()
	assert.False(t, ok)

	writeCurrentPointer(t, u, "2.1.0.0")
	name, ok := u.CurrentVersion()
	require.True(t, ok)
	assert.Equal(t, "2.1.0.0", name)
}
