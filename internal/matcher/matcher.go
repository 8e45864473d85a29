// Package matcher decides whether an external audio or subtitle file belongs
// to a video file by comparing their names.
//
// Scores are additive and unclamped:
//
//	+100  normalized names identical
//	 +50  otherwise, one normalized name contains the other
//	 +30  otherwise, scaled by the common prefix relative to the shorter name
//	 +40  both names carry the same episode number
//	  +5  candidate name carries a ru/en/uk language tag
//
// Subtitles whose stem starts with the video stem are floored at 80.
// Anything under AcceptThreshold is discarded.
package matcher

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/JustinTDCT/CourseVault/internal/natsort"
)

// AcceptThreshold is the minimum score for a candidate to be kept.
const AcceptThreshold = 30

// StartsWithFloor is the minimum score of a subtitle whose stem starts with
// the video stem ("video.ru.srt" for "video.mp4").
const StartsWithFloor = 80

var (
	separatorRe  = regexp.MustCompile(`[_\-.\[\](){}]`)
	whitespaceRe = regexp.MustCompile(`[\s\p{Z}\x{85}]+`)
)

var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:episode|ep|e|урок|lesson|part|часть|глава|chapter|ch)[\s\p{Z}.\-_]*(\p{Nd}+)`),
	regexp.MustCompile(`(?i)^(\p{Nd}+)[\s\p{Z}.\-_]`),
	regexp.MustCompile(`(?i)[\s\p{Z}.\-_](\p{Nd}+)[\s\p{Z}.\-_]`),
	regexp.MustCompile(`(?i)[\s\p{Z}.\-_](\p{Nd}+)$`),
	regexp.MustCompile(`(?i)s\p{Nd}+e(\p{Nd}+)`),
}

// languageBonusPatterns are unanchored: the brackets are optional, so a bare
// "en" inside a word also earns the bonus.
var languageBonusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[\[(]?(rus|russian|ru|рус|русский)[\])]?`),
	regexp.MustCompile(`(?i)[\[(]?(eng|english|en|англ|английский)[\])]?`),
	regexp.MustCompile(`(?i)[\[(]?(ukr|ukrainian|ua|укр|украинский)[\])]?`),
}

type languagePattern struct {
	re   *regexp.Regexp
	code string
}

var audioLanguagePatterns = []languagePattern{
	{regexp.MustCompile(`(?i)[\[(]?(rus|russian|ru|рус)[\])]?`), "ru"},
	{regexp.MustCompile(`(?i)[\[(]?(eng|english|en|англ)[\])]?`), "en"},
	{regexp.MustCompile(`(?i)[\[(]?(ukr|ukrainian|ua|укр)[\])]?`), "uk"},
}

func bounded(words string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[\[(._\-])(` + words + `)(?:$|[\])._\-])`)
}

var subtitleLanguagePatterns = []languagePattern{
	{bounded(`rus|russian|ru|рус`), "ru"},
	{bounded(`eng|english|en|англ`), "en"},
	{bounded(`ukr|ukrainian|ua|укр`), "uk"},
	{bounded(`jpn|japanese|ja|jp|яп`), "ja"},
	{bounded(`ger|german|de|deu|нем`), "de"},
	{bounded(`fra|french|fr|фр`), "fr"},
	{bounded(`spa|spanish|es|исп`), "es"},
	{bounded(`chi|chinese|zh|кит`), "zh"},
}

var forcedRe = bounded(`forced`)

var subtitleCodecs = map[string]string{
	".srt": "subrip",
	".ass": "ass",
	".ssa": "ass",
	".sub": "subviewer",
	".vtt": "webvtt",
	".sup": "hdmv_pgs_subtitle",
	".stl": "stl",
	".smi": "sami",
}

// Ext returns the final extension of name including the dot, or "" when the
// name has none. A leading-dot name such as ".hidden" has no extension.
func Ext(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == base || ext == "." {
		return ""
	}
	return ext
}

// Stem returns the base name without its final extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, Ext(base))
}

// Normalize produces the comparison form of a file name: extension stripped,
// lowercased, separators and brackets turned into spaces, whitespace collapsed.
func Normalize(name string) string {
	s := strings.ToLower(Stem(name))
	s = separatorRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// EpisodeNumber extracts a lesson/episode number from the file stem. Patterns
// are tried in a fixed order and the first match wins, which can pick the
// wrong number for ambiguous names.
func EpisodeNumber(name string) (int, bool) {
	stem := Stem(name)
	for _, re := range episodePatterns {
		m := re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(natsort.Digits(m[1])); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Score rates how likely candidateName belongs to videoName.
func Score(videoName, candidateName string) int {
	score := 0

	videoNorm := Normalize(videoName)
	candNorm := Normalize(candidateName)

	if videoNorm == candNorm {
		score += 100
	} else {
		if strings.Contains(candNorm, videoNorm) || strings.Contains(videoNorm, candNorm) {
			score += 50
		}
		vr, cr := []rune(videoNorm), []rune(candNorm)
		minLen := min(len(vr), len(cr))
		if minLen > 0 {
			prefix := 0
			for prefix < minLen && vr[prefix] == cr[prefix] {
				prefix++
			}
			score += int(float64(prefix) / float64(minLen) * 30)
		}
	}

	if ve, ok := EpisodeNumber(videoName); ok {
		if ce, ok := EpisodeNumber(candidateName); ok && ve == ce {
			score += 40
		}
	}

	for _, re := range languageBonusPatterns {
		if re.MatchString(candidateName) {
			score += 5
			break
		}
	}

	return score
}

// SubtitleScore is Score with the starts-with floor applied.
func SubtitleScore(videoName, subtitleName string) int {
	score := Score(videoName, subtitleName)
	videoStem := strings.ToLower(Stem(videoName))
	if strings.HasPrefix(strings.ToLower(Stem(subtitleName)), videoStem) && score < StartsWithFloor {
		score = StartsWithFloor
	}
	return score
}

// Accepted reports whether a score clears AcceptThreshold.
func Accepted(score int) bool {
	return score >= AcceptThreshold
}

// AudioLanguage guesses a language code from an external audio file name.
// Returns "" when nothing matches.
func AudioLanguage(name string) string {
	return firstLanguage(audioLanguagePatterns, name)
}

// SubtitleLanguage guesses a language code from a subtitle file name using
// tag patterns bounded by separators. Returns "" when nothing matches.
func SubtitleLanguage(name string) string {
	return firstLanguage(subtitleLanguagePatterns, name)
}

func firstLanguage(patterns []languagePattern, name string) string {
	for _, p := range patterns {
		if p.re.MatchString(name) {
			return p.code
		}
	}
	return ""
}

// IsForced reports whether the name carries a bounded "forced" tag.
func IsForced(name string) bool {
	return forcedRe.MatchString(name)
}

// SubtitleCodec maps the subtitle extension to a codec name and a display
// format. Unknown extensions fall back to the bare extension.
func SubtitleCodec(name string) (codec, format string) {
	ext := Ext(name)
	bare := strings.TrimPrefix(ext, ".")
	format = strings.ToUpper(bare)
	if c, ok := subtitleCodecs[strings.ToLower(ext)]; ok {
		return c, format
	}
	return bare, format
}
