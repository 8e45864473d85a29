package jobs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/hibiken/asynq"
)

const TaskScanRoot = "scan:root"

// ──────── Payloads ────────

type ScanPayload struct {
	Root string `json:"root"`
}

// ScanTaskID is the unique task id of a root: one pending scan per root.
func ScanTaskID(root string) string {
	return fmt.Sprintf("scan:%016x", xxhash.Sum64String(root))
}

// EnqueueScan queues a scan of root unless one is already waiting or running.
func EnqueueScan(q *Queue, root string) (string, error) {
	return q.EnqueueUnique(TaskScanRoot, ScanPayload{Root: root}, ScanTaskID(root), asynq.Queue("default"))
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, scan *ScanHandler) {
	q.RegisterHandler(TaskScanRoot, scan)
}
