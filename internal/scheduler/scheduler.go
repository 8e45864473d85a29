package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OnScanDue is called when a root is due for a scheduled scan.
type OnScanDue func(root string)

// Scheduler triggers a re-scan of every configured root on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	roots    []string
	callback OnScanDue
	log      *zap.Logger
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 6h") and prepares the schedule without starting it.
func New(spec string, roots []string, cb OnScanDue, log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{log.Sugar()})),
		roots:    roots,
		callback: cb,
		log:      log,
	}
	if _, err := s.cron.AddFunc(spec, s.check); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduled scans started", zap.Int("roots", len(s.roots)))
}

// Stop stops the schedule and waits for a running trigger to return.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("scheduler stopped")
	return ctx
}

func (s *Scheduler) check() {
	for _, root := range s.roots {
		s.log.Info("root is due for scan", zap.String("root", root))
		s.callback(root)
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
