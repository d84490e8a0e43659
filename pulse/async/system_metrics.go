package async

import (
	"context"
	"fmt"
)

// SystemMetrics tracks resource usage for worker pool monitoring
type SystemMetrics struct {
	WorkersActive int     `json:"workers_active"` // Workers currently executing jobs
	WorkersTotal  int     `json:"workers_total"`  // Total configured workers
	MemoryUsedGB  float64 `json:"memory_used_gb"` // Current memory usage in GB
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	JobsQueued    int     `json:"jobs_queued"`  // Jobs waiting in queue
	JobsRunning   int     `json:"jobs_running"` // Jobs currently executing
}

// getMemoryStats is implemented in platform-specific files:
// - system_metrics_linux.go
// - system_metrics_darwin.go
// - system_metrics_windows.go

// calculateSafeWorkerCount recommends worker count based on available
// memory. Graph builds materialize a repository worktree in a temp dir
// and diff walks hold packfile windows, so budget roughly 1GB per
// concurrent worker.
func calculateSafeWorkerCount(availableGB float64) int {
	const memoryPerWorker = 1.0 // GB per concurrent clone/diff worker
	const memoryBuffer = 2.0    // GB reserved for the rest of the system

	if availableGB < memoryBuffer {
		return 1 // Always allow at least 1 worker
	}

	recommended := int((availableGB - memoryBuffer) / memoryPerWorker)
	if recommended < 1 {
		return 1
	}
	if recommended > 8 {
		return 8
	}

	return recommended
}

// GetSystemMetrics returns current system resource usage
func (wp *WorkerPool) GetSystemMetrics(ctx context.Context) SystemMetrics {
	total, available, err := getMemoryStats()

	var memUsedGB, memTotalGB, memPercent float64
	if err == nil && total > 0 {
		memTotalGB = float64(total) / 1024 / 1024 / 1024
		memUsedGB = float64(total-available) / 1024 / 1024 / 1024
		memPercent = (memUsedGB / memTotalGB) * 100
	}

	counts, err := wp.queue.Counts(ctx)
	// Gracefully handle database errors - report 0s if the query fails
	if err != nil {
		counts = map[JobStatus]int{}
	}

	wp.mu.Lock()
	activeWorkers := wp.activeWorkers
	wp.mu.Unlock()

	return SystemMetrics{
		WorkersActive: activeWorkers,
		WorkersTotal:  wp.config.Workers,
		MemoryUsedGB:  memUsedGB,
		MemoryTotalGB: memTotalGB,
		MemoryPercent: memPercent,
		JobsQueued:    counts[JobStatusPending],
		JobsRunning:   counts[JobStatusProcessing],
	}
}

// checkMemoryPressure validates worker count against available memory.
// Returns a warning message if the count may be too high, empty if OK.
func (wp *WorkerPool) checkMemoryPressure() string {
	total, available, err := getMemoryStats()
	if err != nil {
		return "" // Can't check, assume OK
	}

	availableGB := float64(available) / 1024 / 1024 / 1024
	totalGB := float64(total) / 1024 / 1024 / 1024
	recommended := calculateSafeWorkerCount(availableGB)

	if wp.config.Workers > recommended {
		return fmt.Sprintf(
			"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB). "+
				"Consider reducing workers to prevent memory pressure.",
			wp.config.Workers, recommended, totalGB-availableGB, totalGB)
	}

	return ""
}
