package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/config"
	"github.com/JustinTDCT/CourseVault/internal/db"
	"github.com/JustinTDCT/CourseVault/internal/ffmpeg"
	"github.com/JustinTDCT/CourseVault/internal/logger"
	"github.com/JustinTDCT/CourseVault/internal/preview"
	"github.com/JustinTDCT/CourseVault/internal/repository"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
	"github.com/JustinTDCT/CourseVault/internal/version"
)

var (
	configPath string
	cfg        *config.Config
	log        *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "coursevault",
	Short:         "CourseVault catalogs video course libraries.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = logger.New(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			OutputPath: cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
		if err != nil {
			return err
		}
		for _, w := range cfg.Warnings {
			log.Warn("config", zap.String("warning", w))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Load()
		if info.Commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "CourseVault %s (%s)\n", info.Version, info.Commit)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "CourseVault %s\n", info.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(versionCmd)
}

// openCatalog connects to the configured database and brings the schema up
// to date.
func openCatalog(ctx context.Context) (*db.DB, *repository.CatalogRepository, error) {
	dsn := cfg.Database.ConnectionString(cfg.Paths.DataDir)
	if cfg.Database.Driver == db.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	database, err := db.Connect(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, database, log); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	return database, repository.NewCatalogRepository(database.DB), nil
}

// buildScanner wires the scanner to whatever external tools are installed.
// The caller closes both returned values.
func buildScanner(ctx context.Context, catalog scanner.Catalog, regenerate bool) (*scanner.Scanner, *preview.Generator) {
	tools := ffmpeg.DetectTools(ctx, cfg.Paths.FFmpegPath, cfg.Paths.FFprobePath, log)

	var prober scanner.Prober
	if tools.FFprobe {
		prober = ffmpeg.NewFFprobe(cfg.Paths.FFprobePath, cfg.Performance.VideoProbeTimeout, cfg.Performance.AudioProbeTimeout)
	}

	perf := cfg.Performance
	thumbs := preview.NewGenerator(preview.Config{
		FFmpegPath: cfg.Paths.FFmpegPath,
		OutputDir:  cfg.Paths.ThumbnailsDir,
		Width:      cfg.Thumbnails.Width,
		Height:     cfg.Thumbnails.Height,
		Count:      cfg.Thumbnails.Count,
		Quality:    cfg.Thumbnails.Quality,
		Timeout:    perf.FrameTimeout,
		Workers:    perf.ThumbnailWorkers,
		PoolSize:   perf.VideoWorkers * perf.ThumbnailWorkers,
		Regenerate: regenerate || cfg.Thumbnails.Regenerate,
		Disabled:   !tools.FFmpeg,
	}, log)

	sc := scanner.New(catalog, prober, thumbs, scanner.Config{
		Extensions:        scannerExtensions(),
		VideoWorkers:      perf.VideoWorkers,
		ParallelThreshold: perf.ParallelThreshold,
	}, log)
	return sc, thumbs
}

func scannerExtensions() scanner.Extensions {
	return scanner.Extensions{
		Video:    config.NewExtensionSet(cfg.Extensions.Video),
		Audio:    config.NewExtensionSet(cfg.Extensions.Audio),
		Subtitle: config.NewExtensionSet(cfg.Extensions.Subtitle),
	}
}

// rootsFrom returns args, or the configured default root.
func rootsFrom(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if cfg.Paths.DefaultRoot != "" {
		return []string{cfg.Paths.DefaultRoot}, nil
	}
	return nil, errors.New("no root given and no default root configured (COURSEVAULT_ROOT)")
}
