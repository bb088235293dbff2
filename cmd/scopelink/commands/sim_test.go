package commands

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrames(t *testing.T) {
	frames, err := loadFrames("")
	require.NoError(t, err)
	assert.Nil(t, frames)

	dir, err := ioutil.TempDir("", "frames")
	require.NoError(t, err)
	defer func() { require.NoError(t, os.RemoveAll(dir)) }()

	_, err = loadFrames(dir)
	assert.Error(t, err)

	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "b.jpg"), []byte{2}, 0600))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "a.jpg"), []byte{1}, 0600))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte{3}, 0600))

	frames, err = loadFrames(dir)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {2}}, frames)
}
