package server

import (
	"time"

	"github.com/teranos/OPTIX/pulse/async"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-client send queues
	MaxClientMessageQueueSize = 64
	// ShutdownTimeout is how long to wait for graceful shutdown
	ShutdownTimeout = 15 * time.Second

	// maxUploadBytes caps SCIP index uploads at 50 MB
	maxUploadBytes = 50 << 20

	// Default and max limits for job listing queries
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// jobEvent is the wire shape pushed to WebSocket subscribers on every
// job status transition.
type jobEvent struct {
	Type string     `json:"type"`
	Job  *async.Job `json:"job"`
}

// enqueueResponse acknowledges an accepted job.
type enqueueResponse struct {
	JobID  int64  `json:"jobId"`
	Status string `json:"status"`
}
