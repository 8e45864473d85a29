package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"time"

	"github.com/JustinTDCT/CourseVault/internal/models"
)

// execCommand is a variable so tests can substitute a helper process.
var execCommand = exec.CommandContext

var (
	// ErrToolMissing means the ffprobe/ffmpeg binary could not be started.
	ErrToolMissing = errors.New("ffmpeg tool not found")
	// ErrProbeFailed covers non-zero exits, timeouts and unparseable output.
	ErrProbeFailed = errors.New("ffprobe failed")
)

type FFprobe struct {
	Path         string
	VideoTimeout time.Duration
	AudioTimeout time.Duration
}

type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

type FormatInfo struct {
	Filename string            `json:"filename"`
	Duration string            `json:"duration"`
	Size     string            `json:"size"`
	Bitrate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

type StreamInfo struct {
	Index         int               `json:"index"`
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Duration      string            `json:"duration"`
	Bitrate       string            `json:"bit_rate"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	Disposition   map[string]int    `json:"disposition"`
	Tags          map[string]string `json:"tags"`
}

// VideoInfo is the parsed probe of a video container. Audio and Subtitles
// hold the embedded streams in container order.
type VideoInfo struct {
	Duration   float64
	Resolution string
	Codec      string
	Audio      []models.AudioTrack
	Subtitles  []models.SubtitleTrack
}

// AudioInfo is the parsed probe of an external audio file.
type AudioInfo struct {
	Duration      float64
	Codec         string
	Bitrate       *int64
	SampleRate    *int
	Channels      *int
	ChannelLayout string
	Language      string
	Title         string
}

func NewFFprobe(path string, videoTimeout, audioTimeout time.Duration) *FFprobe {
	return &FFprobe{Path: path, VideoTimeout: videoTimeout, AudioTimeout: audioTimeout}
}

// Probe runs ffprobe with JSON output on filePath. extra arguments go before
// the input path.
func (f *FFprobe) Probe(ctx context.Context, filePath string, timeout time.Duration, extra ...string) (*ProbeResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams"}
	args = append(args, extra...)
	args = append(args, filePath)

	output, err := execCommand(ctx, f.Path, args...).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, f.Path)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProbeFailed, filePath, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrProbeFailed, filePath, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%w: %s: empty output", ErrProbeFailed, filePath)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %s: parse output: %v", ErrProbeFailed, filePath, err)
	}
	return &result, nil
}

// ProbeVideo extracts duration, resolution, codec and the embedded audio and
// subtitle streams of a video file.
func (f *FFprobe) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	result, err := f.Probe(ctx, filePath, f.VideoTimeout)
	if err != nil {
		return nil, err
	}
	return result.VideoInfo(), nil
}

// ProbeAudio reads the first audio stream of an external audio file.
func (f *FFprobe) ProbeAudio(ctx context.Context, filePath string) (*AudioInfo, error) {
	result, err := f.Probe(ctx, filePath, f.AudioTimeout, "-select_streams", "a:0")
	if err != nil {
		return nil, err
	}
	return result.AudioInfo(), nil
}

func (r *ProbeResult) GetDurationSeconds() float64 {
	d, _ := strconv.ParseFloat(r.Format.Duration, 64)
	if d > 0 {
		return d
	}
	for _, s := range r.Streams {
		if s.CodecType != "video" || s.Duration == "" {
			continue
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
			return d
		}
	}
	return 0
}

// VideoInfo converts the raw probe into a VideoInfo. Resolution and codec
// come from the first video stream; resolution stays empty unless both
// dimensions are known.
func (r *ProbeResult) VideoInfo() *VideoInfo {
	info := &VideoInfo{Duration: r.GetDurationSeconds()}
	seenVideo := false

	for _, s := range r.Streams {
		switch s.CodecType {
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			if s.Width > 0 && s.Height > 0 {
				info.Resolution = fmt.Sprintf("%dx%d", s.Width, s.Height)
			}
			info.Codec = s.CodecName

		case "audio":
			idx := s.Index
			duration := info.Duration
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				duration = d
			}
			info.Audio = append(info.Audio, models.AudioTrack{
				TrackType:     models.TrackEmbedded,
				StreamIndex:   &idx,
				Language:      optional(firstTag(s.Tags, "language", "LANGUAGE", "lang")),
				Title:         optional(firstTag(s.Tags, "title", "TITLE", "handler_name")),
				Codec:         optional(s.CodecName),
				Bitrate:       parseInt64(s.Bitrate),
				SampleRate:    parseInt(s.SampleRate),
				Channels:      positive(s.Channels),
				ChannelLayout: optional(s.ChannelLayout),
				Duration:      duration,
				IsDefault:     s.Disposition["default"] != 0,
				MatchScore:    100,
			})

		case "subtitle":
			idx := s.Index
			info.Subtitles = append(info.Subtitles, models.SubtitleTrack{
				TrackType:   models.TrackEmbedded,
				StreamIndex: &idx,
				Language:    optional(firstTag(s.Tags, "language", "LANGUAGE", "lang")),
				Title:       optional(firstTag(s.Tags, "title", "TITLE", "handler_name")),
				Codec:       optional(s.CodecName),
				Format:      optional(s.CodecLongName),
				IsDefault:   s.Disposition["default"] != 0,
				IsForced:    s.Disposition["forced"] != 0,
				MatchScore:  100,
			})
		}
	}
	return info
}

// AudioInfo converts a single-stream probe of an audio file. Container tags
// take precedence over stream tags.
func (r *ProbeResult) AudioInfo() *AudioInfo {
	info := &AudioInfo{
		Bitrate:  parseInt64(r.Format.Bitrate),
		Language: firstTag(r.Format.Tags, "language", "LANGUAGE"),
		Title:    firstTag(r.Format.Tags, "title", "TITLE"),
	}
	info.Duration, _ = strconv.ParseFloat(r.Format.Duration, 64)

	if len(r.Streams) > 0 {
		s := r.Streams[0]
		info.Codec = s.CodecName
		info.SampleRate = parseInt(s.SampleRate)
		info.Channels = positive(s.Channels)
		info.ChannelLayout = s.ChannelLayout
		if info.Language == "" {
			info.Language = firstTag(s.Tags, "language", "LANGUAGE")
		}
		if info.Title == "" {
			info.Title = firstTag(s.Tags, "title", "TITLE")
		}
	}
	return info
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseInt64(s string) *int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
