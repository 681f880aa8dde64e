package xos

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemper_String(t *testing.T) {
	root := "/path/to/root"
	patterns := []string{
		"a-*",
		"*-b",
		"c",
	}
	temp := NewTemper(root, patterns...)

	got := temp.String()
	want := root + "/" + filepath.Join(patterns...)
	assert.Equal(t, want, got)
}

func TestTemper_Path(t *testing.T) {
	tempDir := t.TempDir()
	root := NewTemper(tempDir, "pattern1-*", "pattern2-*")

	path, err := root.Path()
	require.NoError(t, err)
	assert.DirExists(t, path)

	rePattern := strings.ReplaceAll(filepath.ToSlash(tempDir), "/", `\/`)
	re := regexp.MustCompile(rePattern + `\/` + `pattern1-\d+` + `\/` + `pattern2-\d+`)
	got := re.MatchString(path)
	assert.True(t, got)
}

func TestTemper_NewChild(t *testing.T) {
	root := NewTemper("root")

	child1 := root.NewChild("child1-*")
	assert.Equal(t, "root/child1-*", child1.String())
	child2 := root.NewChild("child2-*")
	assert.Equal(t, "root/child2-*", child2.String())

	child11 := child1.NewChild("child1-1-*")
	assert.Equal(t, "root/child1-*/child1-1-*", child11.String())

	assert.Equal(t, "root", root.String())
}

func TestTemper_Cleanup(t *testing.T) {
	tempDir := t.TempDir()
	root := NewTemper(tempDir)

	rootTempFile, err := root.CreateTemp("root-temp-file-*")
	require.NoError(t, err)
	require.NoError(t, rootTempFile.Close())
	rootPath, err := root.Path()
	require.NoError(t, err)

	child := root.NewChild("child-*")
	childTempFile, err := child.CreateTemp("child-temp-file-*")
	require.NoError(t, err)
	require.NoError(t, childTempFile.Close())
	childPath, err := child.Path()
	require.NoError(t, err)

	// cleanup child only
	require.NoError(t, child.Cleanup())
	assert.NoDirExists(t, childPath)
	assert.NoFileExists(t, childTempFile.Name())
	assert.DirExists(t, rootPath)
	assert.FileExists(t, rootTempFile.Name())

	// cleanup root
	require.NoError(t, root.Cleanup())
	assert.NoDirExists(t, rootPath)
	assert.NoFileExists(t, rootTempFile.Name())
}
