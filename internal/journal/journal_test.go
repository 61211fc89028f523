package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailReturnsRecentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	j, err := New(path)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		j.Info("entry-%d", i)
	}

	lines := j.Tail(3)
	require.Len(t, lines, 3)
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		assert.Contains(t, lines[idx], want)
	}
}

func TestTailMissingFile(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "activity.log"))
	require.NoError(t, err)
	assert.Nil(t, j.Tail(10))
}

func TestLevelsRecorded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	j, err := New(path)
	require.NoError(t, err)

	j.Info("workspace created")
	j.Warn("catalog view truncated")
	j.Error("upload failed: %s", "server unavailable")

	lines := j.Tail(10)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INFO")
	assert.Contains(t, lines[1], "WARN")
	assert.Contains(t, lines[2], "ERROR")
	assert.Contains(t, lines[2], "server unavailable")
}
