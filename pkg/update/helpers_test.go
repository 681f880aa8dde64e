package update_test

import (
	"bytes"
	"crypto/md5" //nolint:gosec // mirrors the dual-digest manifest format
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/update"
)

const testAppName = "demo"

var testReleaseTime = time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

// testKey is generated once; RSA key generation dominates test time otherwise.
var testKey = mustGenerateKey()

func mustGenerateKey() *rsa.PrivateKey {
	key, err := update.GenerateKey(2048)
	if err != nil {
		panic(err)
	}
	return key
}

func testPublicKeyPEM(t *testing.T) []byte {
	t.Helper()
	pub, err := update.MarshalPublicKeyPEM(&testKey.PublicKey)
	require.NoError(t, err)
	return pub
}

// newTestUpdater builds an Updater rooted in fresh temp directories, with the
// update root pinned through the environment override.
func newTestUpdater(t *testing.T, mutate ...func(*update.Options)) *update.Updater {
	t.Helper()
	baseDir := t.TempDir()
	t.Setenv("AUTOUPDATER_DEMO_UPDATE_ROOT", t.TempDir())

	opts := update.Options{
		AppName:        testAppName,
		DisplayName:    "Demo App",
		SelfVersion:    "1.0.0.0",
		Channel:        update.ReleaseTypeStable,
		PublicKeyPEM:   testPublicKeyPEM(t),
		BaseDir:        baseDir,
		ExecutableName: testAppName,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	u, err := update.New(opts)
	require.NoError(t, err)
	return u
}

func base64Digests(data []byte) (sha, md string) {
	shaSum := sha256.Sum256(data)
	mdSum := md5.Sum(data) //nolint:gosec // see helper note
	return base64.StdEncoding.EncodeToString(shaSum[:]), base64.StdEncoding.EncodeToString(mdSum[:])
}

// writeInstall materializes an install folder: the given files plus a signed
// embedded manifest describing them.
func writeInstall(t *testing.T, dir string, info update.UpdateInfo, files map[string]string) update.UpdateInfo {
	t.Helper()
	if info.DisplayName == "" {
		info.DisplayName = "Demo App"
	}
	if info.ReleaseTime.IsZero() {
		info.ReleaseTime = testReleaseTime
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		sha, md := base64Digests([]byte(content))
		info.Files = append(info.Files, update.FileEntry{
			Path:          name,
			LastWriteTime: info.ReleaseTime,
			SHA256:        sha,
			MD5:           md,
		})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, update.WriteSignedManifest(buf, &info, testKey))
	require.NoError(t, os.WriteFile(filepath.Join(dir, update.ManifestFilename), buf.Bytes(), 0o644))
	return info
}

// makeInstalledVersion creates a full verified install below the updater's
// install root and returns its folder.
func makeInstalledVersion(t *testing.T, u *update.Updater, version string, files map[string]string) string {
	t.Helper()
	folder := filepath.Join(u.InstallRoot(), update.ParseVersion(version).String())
	require.NoError(t, os.MkdirAll(folder, 0o755))
	writeInstall(t, folder, update.UpdateInfo{
		Version:     version,
		ReleaseType: update.ReleaseTypeStable.String(),
	}, files)
	return folder
}

func signedManifestBytes(t *testing.T, info *update.UpdateInfo) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, update.WriteSignedManifest(buf, info, testKey))
	return buf.Bytes()
}

func writeCurrentPointer(t *testing.T, u *update.Updater, version string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(u.InstallRoot(), update.CurrentPointerFilename), []byte(version), 0o644))
}

func collectErrors(errs *[]string) func(error) {
	return func(err error) {
		*errs = append(*errs, err.Error())
	}
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
