package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "lesson 05 intro", Normalize("Lesson_05 - [Intro].mp4"))
	assert.Equal(t, "a b c", Normalize("  A..b{c}.srt"))
	assert.Equal(t, "hidden", Normalize(".hidden"))
	assert.Equal(t, "x y 4", Normalize("x\u00a0y 4.mp4"))
	assert.Equal(t, "a b", Normalize("a\u2003\u3000b.srt"))
}

func TestEpisodeNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Lesson 05 - Intro.mp4", 5, true},
		{"Lesson_05.eng.srt", 5, true},
		{"Урок 12.mkv", 12, true},
		{"07. Setup.mp4", 7, true},
		{"Intro - 3 - Basics.mp4", 3, true},
		{"Show S02E14.mkv", 14, true},
		{"Intro.mp4", 0, false},
		{"Part１２.mp4", 12, true},
		{"Lesson\u00a007.mp4", 7, true},
		{"x\u00a0y 4.mp4", 4, true},
		{"Глава ٣ - Итоги.mkv", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EpisodeNumber(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubtitleScoreStartsWithFloor(t *testing.T) {
	score := SubtitleScore("Intro.mp4", "Intro (eng).srt")
	assert.GreaterOrEqual(t, score, 80)
	assert.Equal(t, 85, score)
	assert.True(t, Accepted(score))
}

func TestScoreRejectsUnrelated(t *testing.T) {
	score := SubtitleScore("Intro.mp4", "Unrelated.srt")
	assert.Equal(t, 0, score)
	assert.False(t, Accepted(score))
}

func TestScoreEpisodeMatch(t *testing.T) {
	// prefix "lesson 05 " over 13 runes gives 23, episode +40, "eng" tag +5
	score := Score("Lesson 05 - Intro.mp4", "Lesson_05.eng.srt")
	assert.Equal(t, 68, score)
	assert.True(t, Accepted(score))
}

func TestScoreIdenticalNames(t *testing.T) {
	// identical names +100, same part number +40
	assert.Equal(t, 140, Score("Part 1.mkv", "part_1.mka"))
}

func TestScoreUnicodeSpacesAndDigits(t *testing.T) {
	tests := []struct {
		video, candidate string
		want             int
	}{
		{"x\u00a0y 4.mp4", "x y 4.srt", 140},
		{"Part１２.mp4", "Part１２.srt", 140},
	}
	for _, tt := range tests {
		t.Run(tt.video, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.video, tt.candidate))
		})
	}
}

func TestSubtitleLanguageAndForced(t *testing.T) {
	assert.Equal(t, "en", SubtitleLanguage("Movie.forced.eng.srt"))
	assert.True(t, IsForced("Movie.forced.eng.srt"))

	assert.Equal(t, "", SubtitleLanguage("Movie.srt"))
	assert.False(t, IsForced("Movie.srt"))

	assert.Equal(t, "ru", SubtitleLanguage("Урок 1 [рус].ass"))
	assert.Equal(t, "de", SubtitleLanguage("Film_ger.srt"))
	assert.False(t, IsForced("Unforced.srt"))
}

func TestAudioLanguage(t *testing.T) {
	assert.Equal(t, "ru", AudioLanguage("Lesson 1 (rus).mka"))
	assert.Equal(t, "uk", AudioLanguage("Lesson 1 [ukr].mka"))
	assert.Equal(t, "", AudioLanguage("Lesson 1.mka"))
}

func TestSubtitleCodec(t *testing.T) {
	codec, format := SubtitleCodec("a.srt")
	assert.Equal(t, "subrip", codec)
	assert.Equal(t, "SRT", format)

	codec, format = SubtitleCodec("a.SSA")
	assert.Equal(t, "ass", codec)
	assert.Equal(t, "SSA", format)

	codec, format = SubtitleCodec("a.txt")
	assert.Equal(t, "txt", codec)
	assert.Equal(t, "TXT", format)
}
