package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CourseVault/internal/logger"
)

func TestWalkFoldersSortsAndClassifies(t *testing.T) {
	root := writeTree(t,
		"Course 10/b.mp4",
		"Course 2/Lesson 10.mkv",
		"Course 2/Lesson 2.MP4",
		"Course 2/Lesson 2.rus.mka",
		"Course 2/Lesson 2.srt",
		"Course 2/readme.md",
		"Course 2/Extras/Only audio.mp3",
		"top.mp4",
	)

	folders, skipped := WalkFolders(root, testExtensions(), logger.Nop())
	assert.Zero(t, skipped)
	require.Len(t, folders, 3)

	assert.Equal(t, ".", folders[0].RelPath)
	assert.Equal(t, "Course 2", folders[1].RelPath)
	assert.Equal(t, "Course 10", folders[2].RelPath)

	c2 := folders[1]
	assert.Equal(t, []string{"Lesson 2.MP4", "Lesson 10.mkv"}, c2.Videos)
	assert.Equal(t, []string{"Lesson 2.rus.mka"}, c2.Audio)
	assert.Equal(t, []string{"Lesson 2.srt"}, c2.Subtitles)
	assert.Equal(t, "Course 2", c2.Name())
	assert.Equal(t, "", c2.ParentPath())
	assert.Equal(t, filepath.Join(root, "Course 2"), c2.Dir)
}

func TestWalkFoldersIncludesDotEntries(t *testing.T) {
	root := writeTree(t,
		".Hidden Course/a.mp4",
		"Course/.intro.mp4",
		"Course/a.mp4",
	)

	folders, _ := WalkFolders(root, testExtensions(), logger.Nop())
	require.Len(t, folders, 2)
	assert.Equal(t, ".Hidden Course", folders[0].RelPath)
	assert.Equal(t, "Course", folders[1].RelPath)
	assert.Equal(t, []string{".intro.mp4", "a.mp4"}, folders[1].Videos)
}

func TestWalkFoldersFollowsFileSymlinksOnly(t *testing.T) {
	root := writeTree(t, "A/real.mp4")
	outside := writeTree(t, "Other/linked.mp4")

	require.NoError(t, os.Symlink(filepath.Join(outside, "Other", "linked.mp4"), filepath.Join(root, "A", "alias.mp4")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "Other"), filepath.Join(root, "Loop")))

	folders, _ := WalkFolders(root, testExtensions(), logger.Nop())
	require.Len(t, folders, 1)
	assert.Equal(t, []string{"alias.mp4", "real.mp4"}, folders[0].Videos)
}

func TestWalkFoldersSkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := writeTree(t, "A/1.mp4", "Locked/Inner/2.mp4")
	locked := filepath.Join(root, "Locked")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	folders, skipped := WalkFolders(root, testExtensions(), logger.Nop())
	assert.Equal(t, 1, skipped)
	require.Len(t, folders, 1)
	assert.Equal(t, "A", folders[0].RelPath)
}

func TestParentOf(t *testing.T) {
	assert.Equal(t, "", parentOf("."))
	assert.Equal(t, "", parentOf("A"))
	assert.Equal(t, "A/B", parentOf("A/B/C"))
	assert.Equal(t, []string{"A", "A/B", "A/B/C"}, ancestors("A/B/C"))
}
