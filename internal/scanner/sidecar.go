package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/matcher"
	"github.com/JustinTDCT/CourseVault/internal/models"
)

// externalAudio matches the folder's audio files against videoName and
// probes the accepted ones. Results are ordered by descending score.
func (p *Processor) externalAudio(ctx context.Context, dir, videoName string, candidates []string) []models.AudioTrack {
	var tracks []models.AudioTrack
	for _, name := range candidates {
		score := matcher.Score(videoName, name)
		if !matcher.Accepted(score) {
			continue
		}

		full := filepath.Join(dir, name)
		track := models.AudioTrack{
			TrackType:    models.TrackExternal,
			ExternalPath: ptr(full),
			ExternalName: ptr(name),
			MatchScore:   score,
		}
		if info, err := os.Stat(full); err == nil {
			track.FileSize = info.Size()
		}

		var language, title string
		if p.prober != nil {
			probed, err := p.prober.ProbeAudio(ctx, full)
			if err != nil {
				p.log.Debug("external audio probe failed", zap.String("path", full), zap.Error(err))
			} else {
				track.Duration = probed.Duration
				track.Codec = optional(probed.Codec)
				track.Bitrate = probed.Bitrate
				track.SampleRate = probed.SampleRate
				track.Channels = probed.Channels
				track.ChannelLayout = optional(probed.ChannelLayout)
				language, title = probed.Language, probed.Title
			}
		}
		if language == "" {
			language = matcher.AudioLanguage(name)
		}
		if title == "" {
			title = strings.ToLower(matcher.Stem(name))
		}
		track.Language = optional(language)
		track.Title = optional(title)

		tracks = append(tracks, track)
	}

	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].MatchScore > tracks[j].MatchScore })
	return tracks
}

// externalSubtitles matches the folder's subtitle files against videoName.
// Language, forced flag and codec come from the file name alone.
func externalSubtitles(dir, videoName string, candidates []string) []models.SubtitleTrack {
	var tracks []models.SubtitleTrack
	for _, name := range candidates {
		score := matcher.SubtitleScore(videoName, name)
		if !matcher.Accepted(score) {
			continue
		}
		codec, format := matcher.SubtitleCodec(name)
		tracks = append(tracks, models.SubtitleTrack{
			TrackType:    models.TrackExternal,
			ExternalPath: ptr(filepath.Join(dir, name)),
			ExternalName: ptr(name),
			Language:     optional(matcher.SubtitleLanguage(name)),
			Title:        ptr(strings.ToLower(matcher.Stem(name))),
			Codec:        optional(codec),
			Format:       optional(format),
			IsForced:     matcher.IsForced(name),
			MatchScore:   score,
		})
	}

	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].MatchScore > tracks[j].MatchScore })
	return tracks
}

func ptr[T any](v T) *T { return &v }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
