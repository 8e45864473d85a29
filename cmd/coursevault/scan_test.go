package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/CourseVault/internal/logger"
	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
)

type stubScanner struct {
	errs    map[string]error
	scanned []string
}

func (s *stubScanner) Scan(_ context.Context, root string, progress scanner.ProgressFunc) (*models.ScanResult, error) {
	s.scanned = append(s.scanned, root)
	progress("scanning " + root)
	return &models.ScanResult{RootPath: root, Folders: 1, Videos: 2}, s.errs[root]
}

func TestScanRootsContinuesPastFailedRoots(t *testing.T) {
	sc := &stubScanner{errs: map[string]error{
		"/broken": scanner.ErrAllFilesFailed,
		"/gone":   scanner.ErrRootNotFound,
	}}
	var out bytes.Buffer

	err := scanRoots(context.Background(), sc, []string{"/broken", "/gone", "/ok"}, &out, logger.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, scanner.ErrAllFilesFailed)
	assert.ErrorIs(t, err, scanner.ErrRootNotFound)

	assert.Equal(t, []string{"/broken", "/gone", "/ok"}, sc.scanned)
	assert.Contains(t, out.String(), "scanning /ok\nDone: 1 folders, 2 videos\n")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Done:")))
}

func TestScanRootsStopsOnStoreError(t *testing.T) {
	boom := errors.New("disk I/O error")
	sc := &stubScanner{errs: map[string]error{"/a": boom}}

	err := scanRoots(context.Background(), sc, []string{"/a", "/b"}, &bytes.Buffer{}, logger.Nop())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"/a"}, sc.scanned)
}

func TestScanRootsAllSucceed(t *testing.T) {
	sc := &stubScanner{}
	var out bytes.Buffer

	require.NoError(t, scanRoots(context.Background(), sc, []string{"/a", "/b"}, &out, logger.Nop()))
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("Done: 1 folders, 2 videos")))
}
