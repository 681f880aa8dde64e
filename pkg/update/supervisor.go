package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cast"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/xlog"
)

// Workload is the opaque wrapped application: it receives the argument
// vector and returns an exit code. Returning MagicExitCode asks the
// supervisor to re-evaluate and relaunch from the best installed version.
type Workload func(args []string) int

const (
	// workerGraceSleep delays a concurrent update check so it does not race
	// workloads that finish quickly.
	workerGraceSleep = 10 * time.Second

	// respawnSleep is how long a re-spawned process waits before proceeding.
	respawnSleep = 10 * time.Second

	crashLogFilename = "crashlog.txt"
)

// RunFromMostRecent is the top-level launch: it spawns the best installed
// version as a child process and loops while children exit with
// MagicExitCode. When updating is disabled, or when this process already is a
// re-launched child, the workload runs in-process instead.
func (u *Updater) RunFromMostRecent(ctx context.Context, workload Workload, args []string, defaultStrategy Strategy) int {
	// A re-spawned process finds the transient sleep flag, clears it and
	// backs off so its parent can finish exiting.
	sleepEnv := u.opts.EnvName(EnvSuffixSleep)
	if cast.ToBool(os.Getenv(sleepEnv)) {
		_ = os.Unsetenv(sleepEnv)
		u.clock.Sleep(respawnSleep)
	}

	if cast.ToBool(os.Getenv(u.opts.EnvName(EnvSuffixSkipUpdate))) {
		return u.runWorkload(workload, args)
	}

	// The install-root variable marks this process as a re-launched child.
	if os.Getenv(u.opts.EnvName(EnvSuffixInstallRoot)) != "" {
		strategy := defaultStrategy
		if name := os.Getenv(u.opts.EnvName(EnvSuffixPolicy)); name != "" {
			parsed, err := ParseStrategy(name)
			if err != nil {
				u.emitError(err)
			} else {
				strategy = parsed
			}
		}
		return u.WrapWorkload(ctx, workload, args, strategy)
	}

	force := false
	for {
		folder, version := u.GetBestVersion(force)
		force = true
		xlog.Infof("launching %s %s from %s", u.opts.DisplayName, version, folder)
		code, err := u.spawnChild(ctx, folder, args)
		if err != nil {
			u.emitError(errdefs.NewE(errdefs.ErrLaunch, err))
			// Unable to hand off to a child: degrade to running in-process.
			return u.WrapWorkload(ctx, workload, args, defaultStrategy)
		}
		if code != MagicExitCode {
			return code
		}
		xlog.Infof("child requested relaunch, re-evaluating installed versions")
	}
}

// spawnChild runs the executable inside the chosen version folder with the
// original arguments, marking it as a supervised child via the environment.
// Standard streams are bridged to the parent's.
func (u *Updater) spawnChild(ctx context.Context, folder string, args []string) (int, error) {
	exe := filepath.Join(folder, u.opts.ExecutableName)
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Env = append(os.Environ(), u.opts.EnvName(EnvSuffixInstallRoot)+"="+u.baseDir)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}

// WrapWorkload runs the workload under the given update strategy, scheduling
// the single background check/install worker around it. The worker is always
// joined before returning.
func (u *Updater) WrapWorkload(ctx context.Context, workload Workload, args []string, strategy Strategy) int {
	var worker *updateWorker
	if strategy.Check() {
		worker = &updateWorker{
			u:        u,
			download: strategy.Download(),
			delay:    strategy.Timing() == TimingDuring,
			done:     make(chan struct{}),
		}
	}

	timing := strategy.Timing()
	if worker != nil && timing != TimingAfter {
		worker.start(ctx)
	}
	if worker != nil && timing == TimingBefore {
		worker.join()
		if worker.found != nil {
			xlog.Infof("update check finished before launch: %s %s available",
				u.opts.DisplayName, worker.found.Version)
		}
	}

	code := u.runWorkload(workload, args)

	if worker != nil && timing == TimingAfter {
		worker.start(ctx)
	}
	if worker != nil && worker.started {
		worker.join()
		if worker.found != nil {
			if worker.installed {
				xlog.Infof("update %s %s installed, it will be used on the next launch",
					u.opts.DisplayName, worker.found.Version)
			} else {
				xlog.Infof("update %s %s is available", u.opts.DisplayName, worker.found.Version)
			}
		}
	}
	return code
}

// runWorkload invokes the workload behind the crash adapter: a panic is
// recorded to crashlog.txt and then re-raised unchanged for the outer host.
func (u *Updater) runWorkload(workload Workload, args []string) int {
	defer func() {
		if r := recover(); r != nil {
			u.writeCrashLog(r)
			panic(r)
		}
	}()
	return workload(args)
}

func (u *Updater) writeCrashLog(reason any) {
	path := filepath.Join(u.baseDir, crashLogFilename)
	content := fmt.Sprintf("%s %s crashed: %v\n\n%s",
		u.clock.Now().UTC().Format(time.RFC3339), u.opts.DisplayName, reason, debug.Stack())
	if err := u.fs.WriteFile(path, []byte(content), 0o644); err != nil {
		xlog.Warnf("unable to write crash log: %+v", err)
		return
	}
	xlog.Errorf("%s crashed, details written to %s", u.opts.DisplayName, path)
}

// updateWorker is the single background check/download worker. Its result
// fields are written by the goroutine and read only after join.
type updateWorker struct {
	u        *Updater
	download bool
	delay    bool

	done    chan struct{}
	started bool

	found     *UpdateInfo
	installed bool
}

func (w *updateWorker) start(ctx context.Context) {
	if w.started {
		return
	}
	w.started = true
	go func() {
		defer close(w.done)
		if w.delay {
			w.u.clock.Sleep(workerGraceSleep)
		}
		info := w.u.CheckForUpdate(ctx, ReleaseTypeUnknown)
		if info == nil {
			return
		}
		w.found = info
		if w.download {
			w.installed = w.u.DownloadAndUnpack(ctx, info)
		}
	}()
}

func (w *updateWorker) join() {
	if w.started {
		<-w.done
	}
}
