package update_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/update"
)

func TestWrapWorkload_Never(t *testing.T) {
	u := newTestUpdater(t)

	ran := false
	code := u.WrapWorkload(context.Background(), func(args []string) int {
		ran = true
		assert.Equal(t, []string{"--flag"}, args)
		return 3
	}, []string{"--flag"}, update.StrategyNever)

	assert.True(t, ran)
	assert.Equal(t, 3, code)
	assert.Nil(t, u.LastCheckResult())
}

func TestWrapWorkload_CheckBefore(t *testing.T) {
	ms := newManifestServer(t)
	info := remoteManifest("2.1.0.0", "Stable", ms.URL+"/stable/package.zip")
	ms.serve("/stable/autoupdate.manifest", signedManifestBytes(t, info))

	u := newTestUpdater(t, func(o *update.Options) {
		o.ManifestURLs = []string{ms.URL + "/stable/autoupdate.manifest"}
	})

	code := u.WrapWorkload(context.Background(), func(args []string) int {
		// The check happens-before the workload for *Before strategies.
		assert.NotNil(t, u.LastCheckResult())
		return 0
	}, nil, update.StrategyCheckBefore)

	assert.Equal(t, 0, code)
	require.NotNil(t, u.LastCheckResult())
	assert.Equal(t, "2.1.0.0", u.LastCheckResult().Version)
}

func TestWrapWorkload_InstallBefore(t *testing.T) {
	ms := newManifestServer(t)
	u := newTestUpdater(t, func(o *update.Options) {
		o.ManifestURLs = []string{ms.URL + "/stable/" + update.ManifestFilename}
	})
	buildTestPackage(t, u, ms, map[string]string{"app.bin": "new app binary"})

	code := u.WrapWorkload(context.Background(), func(args []string) int {
		return 0
	}, nil, update.StrategyInstallBefore)

	assert.Equal(t, 0, code)
	assert.DirExists(t, filepath.Join(u.InstallRoot(), "2.1.0.0"))
	assert.True(t, u.HasUpdateInstalled(true))
}

func TestWrapWorkload_CheckAfter(t *testing.T) {
	ms := newManifestServer(t)
	info := remoteManifest("2.1.0.0", "Stable", ms.URL+"/stable/package.zip")
	ms.serve("/stable/autoupdate.manifest", signedManifestBytes(t, info))

	u := newTestUpdater(t, func(o *update.Options) {
		o.ManifestURLs = []string{ms.URL + "/stable/autoupdate.manifest"}
	})

	code := u.WrapWorkload(context.Background(), func(args []string) int {
		// The check has not run yet for *After strategies.
		assert.Nil(t, u.LastCheckResult())
		return 0
	}, nil, update.StrategyCheckAfter)

	assert.Equal(t, 0, code)
	assert.NotNil(t, u.LastCheckResult())
}

func TestWrapWorkload_CrashAdapter(t *testing.T) {
	u := newTestUpdater(t)

	require.Panics(t, func() {
		u.WrapWorkload(context.Background(), func(args []string) int {
			panic("workload exploded")
		}, nil, update.StrategyNever)
	})
	assert.FileExists(t, filepath.Join(u.BaseDir(), "crashlog.txt"))
}

func TestRunFromMostRecent_SkipUpdate(t *testing.T) {
	u := newTestUpdater(t)
	t.Setenv("AUTOUPDATER_DEMO_SKIP_UPDATE", "true")

	code := u.RunFromMostRecent(context.Background(), func(args []string) int {
		return 42
	}, nil, update.StrategyCheckDuring)

	assert.Equal(t, 42, code)
}

func TestRunFromMostRecent_ChildMode(t *testing.T) {
	u := newTestUpdater(t)
	t.Setenv("AUTOUPDATER_DEMO_INSTALL_ROOT", u.BaseDir())
	t.Setenv("AUTOUPDATER_DEMO_POLICY", "never")

	code := u.RunFromMostRecent(context.Background(), func(args []string) int {
		return 5
	}, nil, update.StrategyInstallDuring)

	assert.Equal(t, 5, code)
}

func TestRunFromMostRecent_SpawnsBestVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell script child")
	}
	u := newTestUpdater(t)
	script := "#!/bin/sh\nexit 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(u.BaseDir(), testAppName), []byte(script), 0o755))

	code := u.RunFromMostRecent(context.Background(), func(args []string) int {
		t.Fatal("workload must not run in the parent")
		return 0
	}, nil, update.StrategyNever)

	assert.Equal(t, 7, code)
}

func TestRunFromMostRecent_MagicExitRelaunch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell script child")
	}
	u := newTestUpdater(t)
	marker := filepath.Join(t.TempDir(), "relaunched")
	script := "#!/bin/sh\nif [ -f '" + marker + "' ]; then exit 0; fi\ntouch '" + marker + "'\nexit 126\n"
	require.NoError(t, os.WriteFile(filepath.Join(u.BaseDir(), testAppName), []byte(script), 0o755))

	code := u.RunFromMostRecent(context.Background(), func(args []string) int {
		t.Fatal("workload must not run in the parent")
		return 0
	}, nil, update.StrategyNever)

	assert.Equal(t, 0, code)
	assert.FileExists(t, marker)
}

func TestRunFromMostRecent_SleepFlagCleared(t *testing.T) {
	mock := clock.NewMock()
	u := newTestUpdater(t, func(o *update.Options) { o.Clock = mock })
	t.Setenv("AUTOUPDATER_DEMO_SLEEP", "1")
	t.Setenv("AUTOUPDATER_DEMO_SKIP_UPDATE", "true")

	done := make(chan int, 1)
	go func() {
		done <- u.RunFromMostRecent(context.Background(), func(args []string) int {
			return 9
		}, nil, update.StrategyNever)
	}()

	// Drive the mocked clock until the re-spawn back-off elapses.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case code := <-done:
			assert.Equal(t, 9, code)
			assert.Empty(t, os.Getenv("AUTOUPDATER_DEMO_SLEEP"))
			return
		case <-deadline:
			t.Fatal("workload did not run after the sleep flag was observed")
		default:
			mock.Add(time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}
