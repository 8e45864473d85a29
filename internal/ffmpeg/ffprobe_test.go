package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CourseVault/internal/logger"
)

const videoProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "612.4"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "bit_rate": "128000", "sample_rate": "48000",
     "channels": 2, "channel_layout": "stereo", "disposition": {"default": 1},
     "tags": {"language": "rus", "handler_name": "SoundHandler"}},
    {"index": 2, "codec_type": "audio", "codec_name": "ac3", "duration": "600.0", "tags": {"LANGUAGE": "eng", "TITLE": "Commentary"}},
    {"index": 3, "codec_type": "subtitle", "codec_name": "subrip", "codec_long_name": "SubRip subtitle",
     "disposition": {"default": 0, "forced": 1}, "tags": {"lang": "en"}}
  ],
  "format": {"filename": "a.mkv", "duration": "", "bit_rate": "4000000"}
}`

const audioProbeJSON = `{
  "streams": [{"index": 0, "codec_type": "audio", "codec_name": "mp3", "sample_rate": "44100", "channels": 2,
               "channel_layout": "stereo", "tags": {"language": "ukr", "title": "stream title"}}],
  "format": {"duration": "59.5", "bit_rate": "192000", "tags": {"title": "Lesson 1 dub"}}
}`

type helperResult struct {
	stdout string
	exit   int
}

// mockExecCommand routes execCommand through TestHelperProcess and records
// the arguments of every invocation.
func mockExecCommand(t *testing.T, res helperResult) *[][]string {
	t.Helper()
	var calls [][]string
	original := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"GO_HELPER_PROCESS_STDOUT=" + res.stdout,
			fmt.Sprintf("GO_HELPER_PROCESS_EXIT=%d", res.exit),
		}
		return cmd
	}
	t.Cleanup(func() { execCommand = original })
	return &calls
}

// TestHelperProcess isn't a real test. It stands in for ffprobe/ffmpeg when
// re-executed by mockExecCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_PROCESS_STDOUT"))
	if os.Getenv("GO_HELPER_PROCESS_EXIT") != "0" {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestProbeVideo(t *testing.T) {
	calls := mockExecCommand(t, helperResult{stdout: videoProbeJSON})
	probe := NewFFprobe("ffprobe", 10*time.Second, 5*time.Second)

	info, err := probe.ProbeVideo(context.Background(), "/c/a.mkv")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "/c/a.mkv"}, (*calls)[0])

	// format duration is empty, so the video stream duration is used
	assert.InDelta(t, 612.4, info.Duration, 0.001)
	assert.Equal(t, "1920x1080", info.Resolution)
	assert.Equal(t, "h264", info.Codec)

	require.Len(t, info.Audio, 2)
	first := info.Audio[0]
	assert.Equal(t, 1, *first.StreamIndex)
	assert.Equal(t, "rus", *first.Language)
	assert.Equal(t, "SoundHandler", *first.Title)
	assert.Equal(t, int64(128000), *first.Bitrate)
	assert.Equal(t, 48000, *first.SampleRate)
	assert.Equal(t, 2, *first.Channels)
	assert.True(t, first.IsDefault)
	assert.Equal(t, 100, first.MatchScore)
	assert.InDelta(t, 612.4, first.Duration, 0.001)

	second := info.Audio[1]
	assert.Equal(t, "eng", *second.Language)
	assert.Equal(t, "Commentary", *second.Title)
	assert.Nil(t, second.Bitrate)
	assert.False(t, second.IsDefault)
	assert.InDelta(t, 600.0, second.Duration, 0.001)

	require.Len(t, info.Subtitles, 1)
	sub := info.Subtitles[0]
	assert.Equal(t, 3, *sub.StreamIndex)
	assert.Equal(t, "en", *sub.Language)
	assert.Equal(t, "SubRip subtitle", *sub.Format)
	assert.True(t, sub.IsForced)
	assert.False(t, sub.IsDefault)
}

func TestProbeVideoResolutionNeedsBothDimensions(t *testing.T) {
	mockExecCommand(t, helperResult{stdout: `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640}],"format":{"duration":"12.5"}}`})
	info, err := NewFFprobe("ffprobe", time.Second, time.Second).ProbeVideo(context.Background(), "x.webm")
	require.NoError(t, err)
	assert.Empty(t, info.Resolution)
	assert.Equal(t, "vp9", info.Codec)
	assert.InDelta(t, 12.5, info.Duration, 0.001)
}

func TestProbeAudio(t *testing.T) {
	calls := mockExecCommand(t, helperResult{stdout: audioProbeJSON})
	info, err := NewFFprobe("ffprobe", time.Second, time.Second).ProbeAudio(context.Background(), "/c/a.mka")
	require.NoError(t, err)

	assert.Contains(t, (*calls)[0], "-select_streams")
	assert.Contains(t, (*calls)[0], "a:0")
	assert.InDelta(t, 59.5, info.Duration, 0.001)
	assert.Equal(t, "mp3", info.Codec)
	assert.Equal(t, int64(192000), *info.Bitrate)
	assert.Equal(t, 44100, *info.SampleRate)
	assert.Equal(t, "ukr", info.Language)
	assert.Equal(t, "Lesson 1 dub", info.Title)
}

func TestProbeFailures(t *testing.T) {
	probe := NewFFprobe("ffprobe", time.Second, time.Second)

	mockExecCommand(t, helperResult{stdout: `{"streams": [`})
	_, err := probe.ProbeVideo(context.Background(), "bad.mp4")
	assert.ErrorIs(t, err, ErrProbeFailed)

	mockExecCommand(t, helperResult{stdout: videoProbeJSON, exit: 1})
	_, err = probe.ProbeVideo(context.Background(), "bad.mp4")
	assert.ErrorIs(t, err, ErrProbeFailed)

	mockExecCommand(t, helperResult{})
	_, err = probe.ProbeVideo(context.Background(), "empty.mp4")
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestProbeMissingTool(t *testing.T) {
	probe := NewFFprobe("coursevault-no-such-ffprobe", time.Second, time.Second)
	_, err := probe.ProbeVideo(context.Background(), "a.mp4")
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestDetectTools(t *testing.T) {
	mockExecCommand(t, helperResult{})
	tools := DetectTools(context.Background(), "ffmpeg", "ffprobe", logger.Nop())
	assert.True(t, tools.FFmpeg)
	assert.True(t, tools.FFprobe)

	mockExecCommand(t, helperResult{exit: 1})
	tools = DetectTools(context.Background(), "ffmpeg", "", logger.Nop())
	assert.False(t, tools.FFmpeg)
	assert.False(t, tools.FFprobe)
}
