package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no explicit
// config path is given.
const DefaultConfigFile = "coursevault.yaml"

type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Database    DatabaseConfig    `yaml:"database"`
	Extensions  ExtensionsConfig  `yaml:"extensions"`
	Thumbnails  ThumbnailConfig   `yaml:"thumbnails"`
	Performance PerformanceConfig `yaml:"performance"`
	Queue       QueueConfig       `yaml:"queue"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Watch       WatchConfig       `yaml:"watch"`
	Log         LogConfig         `yaml:"log"`

	// Warnings collects problems Load recovered from. They are logged once a
	// logger exists.
	Warnings []string `yaml:"-"`
}

type PathsConfig struct {
	DataDir       string `yaml:"data_dir"`
	ThumbnailsDir string `yaml:"thumbnails_dir"`
	FFmpegPath    string `yaml:"ffmpeg_path"`
	FFprobePath   string `yaml:"ffprobe_path"`
	DefaultRoot   string `yaml:"default_root"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

// ConnectionString returns the DSN, defaulting to a SQLite file in dataDir.
func (c *DatabaseConfig) ConnectionString(dataDir string) string {
	if c.DSN != "" {
		return c.DSN
	}
	return filepath.Join(dataDir, "coursevault.db")
}

type ExtensionsConfig struct {
	Video    []string `yaml:"video"`
	Audio    []string `yaml:"audio"`
	Subtitle []string `yaml:"subtitle"`
}

type ThumbnailConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Count      int  `yaml:"count"`
	Quality    int  `yaml:"quality"` // ffmpeg -q:v, 2-31, lower is better
	Regenerate bool `yaml:"regenerate"`
}

type PerformanceConfig struct {
	VideoWorkers      int           `yaml:"video_workers"`
	ThumbnailWorkers  int           `yaml:"thumbnail_workers"`
	FrameTimeout      time.Duration `yaml:"frame_timeout"`
	VideoProbeTimeout time.Duration `yaml:"video_probe_timeout"`
	AudioProbeTimeout time.Duration `yaml:"audio_probe_timeout"`
	// ParallelThreshold is the folder size above which videos are processed
	// on the worker pool instead of sequentially.
	ParallelThreshold int `yaml:"parallel_threshold"`
}

type QueueConfig struct {
	RedisAddr   string `yaml:"redis_addr"`
	Concurrency int    `yaml:"concurrency"`
}

type ScheduleConfig struct {
	Spec  string   `yaml:"spec"` // cron expression, empty disables
	Roots []string `yaml:"roots"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:     "data",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Database: DatabaseConfig{Driver: "sqlite3"},
		Extensions: ExtensionsConfig{
			Video:    []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpg", ".mpeg", ".3gp", ".ts"},
			Audio:    []string{".mp3", ".aac", ".ac3", ".dts", ".flac", ".wav", ".ogg", ".m4a", ".wma", ".eac3", ".opus", ".mka"},
			Subtitle: []string{".srt", ".ass", ".ssa", ".sub", ".idx", ".vtt", ".sup", ".stl", ".smi", ".txt"},
		},
		Thumbnails: ThumbnailConfig{Width: 320, Height: 180, Count: 10, Quality: 5},
		Performance: PerformanceConfig{
			VideoWorkers:      8,
			ThumbnailWorkers:  4,
			FrameTimeout:      5 * time.Second,
			VideoProbeTimeout: 10 * time.Second,
			AudioProbeTimeout: 5 * time.Second,
			ParallelThreshold: 2,
		},
		Queue: QueueConfig{RedisAddr: "127.0.0.1:6379", Concurrency: 1},
		Watch: WatchConfig{Debounce: 5 * time.Second},
		Log:   LogConfig{Level: "info", Format: "console", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultConfigFile when path is empty and the file exists), a .env file and
// finally environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := loadDotenv(".env"); err != nil {
		cfg.Warnings = append(cfg.Warnings, err.Error())
	}
	cfg.mergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotenv exports the variables in path. A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ignoring %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.Paths.DataDir = env("COURSEVAULT_DATA_DIR", c.Paths.DataDir)
	c.Paths.ThumbnailsDir = env("COURSEVAULT_THUMBNAILS_DIR", c.Paths.ThumbnailsDir)
	c.Paths.FFmpegPath = env("FFMPEG_PATH", c.Paths.FFmpegPath)
	c.Paths.FFprobePath = env("FFPROBE_PATH", c.Paths.FFprobePath)
	c.Paths.DefaultRoot = env("COURSEVAULT_ROOT", c.Paths.DefaultRoot)

	c.Database.Driver = env("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = env("DATABASE_URL", c.Database.DSN)

	c.Extensions.Video = envList("VIDEO_EXTENSIONS", c.Extensions.Video)
	c.Extensions.Audio = envList("AUDIO_EXTENSIONS", c.Extensions.Audio)
	c.Extensions.Subtitle = envList("SUBTITLE_EXTENSIONS", c.Extensions.Subtitle)

	c.Thumbnails.Width = envInt("THUMBNAIL_WIDTH", c.Thumbnails.Width)
	c.Thumbnails.Height = envInt("THUMBNAIL_HEIGHT", c.Thumbnails.Height)
	c.Thumbnails.Count = envInt("THUMBNAIL_COUNT", c.Thumbnails.Count)
	c.Thumbnails.Quality = envInt("THUMBNAIL_QUALITY", c.Thumbnails.Quality)
	c.Thumbnails.Regenerate = envBool("THUMBNAIL_REGENERATE", c.Thumbnails.Regenerate)

	c.Performance.VideoWorkers = envInt("MAX_VIDEO_WORKERS", c.Performance.VideoWorkers)
	c.Performance.ThumbnailWorkers = envInt("THUMBNAIL_WORKERS", c.Performance.ThumbnailWorkers)
	c.Performance.FrameTimeout = envDuration("FFMPEG_TIMEOUT", c.Performance.FrameTimeout)
	c.Performance.VideoProbeTimeout = envDuration("PROBE_TIMEOUT", c.Performance.VideoProbeTimeout)
	c.Performance.AudioProbeTimeout = envDuration("AUDIO_PROBE_TIMEOUT", c.Performance.AudioProbeTimeout)

	c.Queue.RedisAddr = env("REDIS_ADDR", c.Queue.RedisAddr)
	c.Queue.Concurrency = envInt("QUEUE_CONCURRENCY", c.Queue.Concurrency)

	c.Schedule.Spec = env("SCAN_SCHEDULE", c.Schedule.Spec)
	c.Schedule.Roots = envList("SCAN_ROOTS", c.Schedule.Roots)

	c.Watch.Enabled = envBool("WATCH_ENABLED", c.Watch.Enabled)
	c.Watch.Debounce = envDuration("WATCH_DEBOUNCE", c.Watch.Debounce)

	c.Log.Level = env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env("LOG_FORMAT", c.Log.Format)
	c.Log.File = env("LOG_FILE", c.Log.File)
}

// Validate normalizes extensions, fills derived paths and clamps counts.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "."
	}
	if c.Paths.ThumbnailsDir == "" {
		c.Paths.ThumbnailsDir = filepath.Join(c.Paths.DataDir, "video_thumbnails")
	}

	c.Extensions.Video = normalizeExtensions(c.Extensions.Video)
	c.Extensions.Audio = normalizeExtensions(c.Extensions.Audio)
	c.Extensions.Subtitle = normalizeExtensions(c.Extensions.Subtitle)
	if len(c.Extensions.Video) == 0 {
		return errors.New("config: no video extensions configured")
	}

	c.Thumbnails.Count = max(c.Thumbnails.Count, 1)
	c.Thumbnails.Quality = min(max(c.Thumbnails.Quality, 2), 31)
	c.Performance.VideoWorkers = max(c.Performance.VideoWorkers, 1)
	c.Performance.ThumbnailWorkers = max(c.Performance.ThumbnailWorkers, 1)
	c.Performance.ParallelThreshold = max(c.Performance.ParallelThreshold, 0)
	c.Queue.Concurrency = max(c.Queue.Concurrency, 1)
	return nil
}

// ExtensionSet is a lowercase extension lookup including the leading dot.
type ExtensionSet map[string]bool

func NewExtensionSet(exts []string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, e := range normalizeExtensions(exts) {
		set[e] = true
	}
	return set
}

// Has reports whether the extension of name is in the set.
func (s ExtensionSet) Has(name string) bool {
	return s[strings.ToLower(filepath.Ext(name))]
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("5s") and bare numbers of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := cast.ToIntE(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := cast.ToDurationE(v); err == nil {
		return d
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return cast.ToStringSlice(strings.Split(v, ","))
}
