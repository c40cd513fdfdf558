package renamer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestTransferMoveWithSidecars(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "黄雀 - S01E05 - 1080p.mkv")
	writeFile(t, src, "video")
	writeFile(t, filepath.Join(dir, "in", "黄雀 - S01E05 - 1080p.nfo"), "nfo")
	writeFile(t, filepath.Join(dir, "in", "黄雀 - S01E05 - 1080p.zh.srt"), "subs")
	writeFile(t, filepath.Join(dir, "in", "黄雀 - S01E05 - 1080p.txt"), "not a sidecar")

	dst := filepath.Join(dir, "lib", "黄雀 (2024)", "Season 1", "黄雀 - S01E05 - 暗流.mkv")
	tr := NewTransferer(nil, zerolog.Nop())
	got, err := tr.Transfer(src, dst, ActionMove, OverwriteSkip)
	require.NoError(t, err)
	assert.Equal(t, dst, got)

	assert.Equal(t, "video", readFile(t, dst))
	assert.Equal(t, "nfo", readFile(t, filepath.Join(dir, "lib", "黄雀 (2024)", "Season 1", "黄雀 - S01E05 - 暗流.nfo")))
	assert.Equal(t, "subs", readFile(t, filepath.Join(dir, "lib", "黄雀 (2024)", "Season 1", "黄雀 - S01E05 - 暗流.zh.srt")))
	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(dir, "in", "黄雀 - S01E05 - 1080p.txt"))
}

func TestTransferCopyLeavesNoPartFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	writeFile(t, src, "payload")
	dst := filepath.Join(dir, "out", "b.mkv")

	_, err := NewTransferer(nil, zerolog.Nop()).Transfer(src, dst, ActionCopy, OverwriteSkip)
	require.NoError(t, err)
	assert.Equal(t, "payload", readFile(t, dst))
	assert.FileExists(t, src)
	assert.NoFileExists(t, dst+".part")
}

func TestTransferLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("links need privileges on windows")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	writeFile(t, src, "payload")
	tr := NewTransferer(nil, zerolog.Nop())

	hard := filepath.Join(dir, "hard", "a.mkv")
	_, err := tr.Transfer(src, hard, ActionHardlink, OverwriteSkip)
	require.NoError(t, err)
	si, _ := os.Stat(src)
	hi, _ := os.Stat(hard)
	assert.True(t, os.SameFile(si, hi))

	// linking again onto the same inode is a no-op, not a conflict
	_, err = tr.Transfer(src, hard, ActionHardlink, OverwriteSkip)
	assert.NoError(t, err)

	soft := filepath.Join(dir, "soft", "a.mkv")
	_, err = tr.Transfer(src, soft, ActionSymlink, OverwriteSkip)
	require.NoError(t, err)
	target, err := os.Readlink(soft)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(target))
	assert.Equal(t, "payload", readFile(t, soft))
}

func TestTransferOverwritePolicies(t *testing.T) {
	setup := func(t *testing.T, srcContent, dstContent string) (string, string) {
		dir := t.TempDir()
		src := filepath.Join(dir, "in", "a.mkv")
		dst := filepath.Join(dir, "out", "a.mkv")
		writeFile(t, src, srcContent)
		writeFile(t, dst, dstContent)
		return src, dst
	}
	tr := NewTransferer(nil, zerolog.Nop())

	t.Run("skip", func(t *testing.T) {
		src, dst := setup(t, "bigger source", "old")
		_, err := tr.Transfer(src, dst, ActionMove, OverwriteSkip)
		assert.ErrorIs(t, err, ErrSkipped)
		assert.Equal(t, "old", readFile(t, dst))
		assert.FileExists(t, src)
	})

	t.Run("size keeps larger destination", func(t *testing.T) {
		src, dst := setup(t, "small", "larger destination")
		_, err := tr.Transfer(src, dst, ActionMove, OverwriteSize)
		assert.ErrorIs(t, err, ErrSkipped)
		assert.Equal(t, "larger destination", readFile(t, dst))
	})

	t.Run("size replaces with larger source", func(t *testing.T) {
		src, dst := setup(t, "a much larger source", "small")
		_, err := tr.Transfer(src, dst, ActionMove, OverwriteSize)
		require.NoError(t, err)
		assert.Equal(t, "a much larger source", readFile(t, dst))
		assert.NoFileExists(t, src)
	})

	t.Run("always", func(t *testing.T) {
		src, dst := setup(t, "new", "older and larger")
		_, err := tr.Transfer(src, dst, ActionCopy, OverwriteAlways)
		require.NoError(t, err)
		assert.Equal(t, "new", readFile(t, dst))
	})
}

func TestTransferMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NewTransferer(nil, zerolog.Nop()).Transfer(filepath.Join(dir, "nope.mkv"), filepath.Join(dir, "x.mkv"), ActionMove, OverwriteSkip)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkipped)
}

func TestParseActionAndPolicy(t *testing.T) {
	a, ok := ParseAction("LINK")
	assert.True(t, ok)
	assert.Equal(t, ActionHardlink, a)
	_, ok = ParseAction("teleport")
	assert.False(t, ok)

	p, ok := ParseOverwritePolicy(" Size ")
	assert.True(t, ok)
	assert.Equal(t, OverwriteSize, p)
	_, ok = ParseOverwritePolicy("never")
	assert.False(t, ok)
}
