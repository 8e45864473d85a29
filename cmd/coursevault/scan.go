package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/jobs"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
)

var regenerate bool

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan course roots and update the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := rootsFrom(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, repo, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		sc, thumbs := buildScanner(ctx, repo, regenerate)
		defer thumbs.Close()
		defer sc.Close()

		return scanRoots(ctx, sc, roots, cmd.OutOrStdout(), log)
	},
}

// scanRoots scans each root in turn. A root that is missing or whose files all
// failed is reported and skipped; any other error stops the run.
func scanRoots(ctx context.Context, sc jobs.RootScanner, roots []string, out io.Writer, log *zap.Logger) error {
	var skipped []error
	for _, root := range roots {
		result, err := sc.Scan(ctx, root, func(line string) { fmt.Fprintln(out, line) })
		if errors.Is(err, scanner.ErrRootNotFound) || errors.Is(err, scanner.ErrAllFilesFailed) {
			log.Warn("scan skipped root", zap.String("root", root), zap.Error(err))
			skipped = append(skipped, fmt.Errorf("scan %s: %w", root, err))
			continue
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", root, err)
		}
		fmt.Fprintf(out, "Done: %d folders, %d videos\n", result.Folders, result.Videos)
	}
	return errors.Join(skipped...)
}

func init() {
	scanCmd.Flags().BoolVar(&regenerate, "regenerate", false, "render thumbnails again even when cached")
	rootCmd.AddCommand(scanCmd)
}
