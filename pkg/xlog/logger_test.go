package xlog_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/xlog"
)

func TestLogger_SetLevel(t *testing.T) {
	stdout := &bytes.Buffer{}
	c := xlog.NewConfig()
	c.AttrReplacer = xlog.ChainReplacer(
		xlog.NormalizeSourceAttrReplacer(),
		xlog.SuppressTimeAttrReplacer(),
	)
	c.StdWriter = stdout

	xlog.SetDefault(xlog.New(c))

	xlog.Debug("log message with attrs", "attr1", "val1", "attr2", "val2")
	xlog.Debugf("log message with format: %s", "hello")
	xlog.SetLevel(xlog.LevelDebug)
	xlog.Debug("log message with attrs", "attr1", "val1", "attr2", "val2")
	xlog.Debugf("log message with format: %s", "hello")

	got := stdout.String()
	want := strings.TrimLeft(`
level=DEBUG source=logger_test.go:30 msg="log message with attrs" attr1=val1 attr2=val2
level=DEBUG source=logger_test.go:31 msg="log message with format: hello"
`, "\n")

	assert.Equal(t, want, got)
}

func TestLogger_FileHandler(t *testing.T) {
	stdout := &bytes.Buffer{}
	tempdir := t.TempDir()

	c := xlog.NewConfig()
	c.AttrReplacer = xlog.ChainReplacer(
		xlog.NormalizeSourceAttrReplacer(),
		xlog.SuppressTimeAttrReplacer(),
	)
	c.AddSource = false
	c.StdWriter = stdout
	c.Path = filepath.Join(tempdir, "x.log")

	xlog.SetDefault(xlog.New(c))

	xlog.Info("log message with attrs", "attr1", "val1")
	xlog.Infof("log message with format: %s", "hello")

	t.Run("stdout", func(t *testing.T) {
		want := strings.TrimLeft(`
level=INFO msg="log message with attrs" attr1=val1
level=INFO msg="log message with format: hello"
`, "\n")
		assert.Equal(t, want, stdout.String())
	})

	t.Run("logfile", func(t *testing.T) {
		content, err := os.ReadFile(c.Path)
		require.NoError(t, err)
		want := strings.TrimLeft(`
{"level":"INFO","msg":"log message with attrs","attr1":"val1"}
{"level":"INFO","msg":"log message with format: hello"}
`, "\n")
		assert.Equal(t, want, string(content))
	})
}

func TestLogger_With(t *testing.T) {
	stdout := &bytes.Buffer{}
	c := xlog.NewConfig()
	c.AttrReplacer = xlog.SuppressTimeAttrReplacer()
	c.AddSource = false
	c.StdWriter = stdout

	logger := xlog.New(c).With("component", "updater")
	logger.Info("hello")

	assert.Equal(t, "level=INFO msg=hello component=updater\n", stdout.String())
}
