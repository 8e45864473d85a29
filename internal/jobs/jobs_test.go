package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CourseVault/internal/logger"
	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
)

type fakeScanner struct {
	mu    sync.Mutex
	roots []string
	lines []string
	err   error
}

func (f *fakeScanner) Scan(_ context.Context, root string, progress scanner.ProgressFunc) (*models.ScanResult, error) {
	f.mu.Lock()
	f.roots = append(f.roots, root)
	f.mu.Unlock()
	for i := 0; i < 3; i++ {
		line := fmt.Sprintf("folder %d", i)
		f.lines = append(f.lines, line)
		progress(line)
	}
	return &models.ScanResult{RootPath: root, Folders: 3, Videos: 9}, f.err
}

func scanTask(t *testing.T, root string) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(ScanPayload{Root: root})
	require.NoError(t, err)
	return asynq.NewTask(TaskScanRoot, data)
}

func TestScanHandlerRunsScan(t *testing.T) {
	sc := &fakeScanner{}
	h := NewScanHandler(sc, logger.Nop())

	require.NoError(t, h.ProcessTask(context.Background(), scanTask(t, "/lib")))
	assert.Equal(t, []string{"/lib"}, sc.roots)
	assert.Len(t, sc.lines, 3)
}

func TestScanHandlerSkipsRetryForMissingRoot(t *testing.T) {
	sc := &fakeScanner{err: fmt.Errorf("%w: /gone", scanner.ErrRootNotFound)}
	h := NewScanHandler(sc, logger.Nop())

	err := h.ProcessTask(context.Background(), scanTask(t, "/gone"))
	assert.ErrorIs(t, err, scanner.ErrRootNotFound)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScanHandlerSkipsRetryWhenAllFilesFailed(t *testing.T) {
	sc := &fakeScanner{err: scanner.ErrAllFilesFailed}
	h := NewScanHandler(sc, logger.Nop())

	err := h.ProcessTask(context.Background(), scanTask(t, "/lib"))
	assert.ErrorIs(t, err, scanner.ErrAllFilesFailed)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScanHandlerRetriesStoreErrors(t *testing.T) {
	boom := errors.New("database is locked")
	h := NewScanHandler(&fakeScanner{err: boom}, logger.Nop())

	err := h.ProcessTask(context.Background(), scanTask(t, "/lib"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestScanHandlerRejectsBadPayload(t *testing.T) {
	h := NewScanHandler(&fakeScanner{}, logger.Nop())

	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskScanRoot, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskScanRoot, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScanTaskIDIsStablePerRoot(t *testing.T) {
	assert.Equal(t, ScanTaskID("/lib/a"), ScanTaskID("/lib/a"))
	assert.NotEqual(t, ScanTaskID("/lib/a"), ScanTaskID("/lib/b"))
	assert.Regexp(t, `^scan:[0-9a-f]{16}$`, ScanTaskID("/lib/a"))
}

func TestIsTaskConflict(t *testing.T) {
	assert.True(t, isTaskConflict(asynq.ErrTaskIDConflict))
	assert.True(t, isTaskConflict(fmt.Errorf("wrapped: %w", asynq.ErrDuplicateTask)))
	assert.True(t, isTaskConflict(errors.New("task ID conflicts with another task")))
	assert.False(t, isTaskConflict(errors.New("connection refused")))
}
