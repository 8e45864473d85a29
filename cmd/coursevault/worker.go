package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/jobs"
	"github.com/JustinTDCT/CourseVault/internal/scheduler"
	"github.com/JustinTDCT/CourseVault/internal/watcher"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [root...]",
	Short: "Queue background scans of course roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := rootsFrom(args)
		if err != nil {
			return err
		}
		q := jobs.NewQueue(cfg.Queue.RedisAddr, cfg.Queue.Concurrency, log)
		defer q.Stop()

		for _, root := range roots {
			id, err := jobs.EnqueueScan(q, root)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", root, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", root, id)
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued scans, scheduled scans and the folder watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, repo, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		sc, thumbs := buildScanner(ctx, repo, false)
		defer thumbs.Close()
		defer sc.Close()

		q := jobs.NewQueue(cfg.Queue.RedisAddr, cfg.Queue.Concurrency, log)
		jobs.RegisterHandlers(q, jobs.NewScanHandler(sc, log))
		if err := q.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
		defer q.Stop()

		enqueue := func(root string) {
			if _, err := jobs.EnqueueScan(q, root); err != nil {
				log.Error("enqueue scan failed", zap.String("root", root), zap.Error(err))
			}
		}

		roots := cfg.Schedule.Roots
		if len(roots) == 0 && cfg.Paths.DefaultRoot != "" {
			roots = []string{cfg.Paths.DefaultRoot}
		}

		if cfg.Schedule.Spec != "" && len(roots) > 0 {
			sched, err := scheduler.New(cfg.Schedule.Spec, roots, enqueue, log)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		if cfg.Watch.Enabled && len(roots) > 0 {
			exts := scannerExtensions()
			relevant := func(name string) bool {
				return exts.Video.Has(name) || exts.Audio.Has(name) || exts.Subtitle.Has(name)
			}
			w, err := watcher.New(roots, relevant, cfg.Watch.Debounce, enqueue, log)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			w.Start()
			defer w.Stop()
		}

		log.Info("worker running", zap.Strings("roots", roots))
		<-ctx.Done()
		log.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd, workerCmd)
}
