// Package server exposes the job pipeline and its query stores over
// HTTP. The surface is deliberately thin: identity comes from an
// auth.Resolver, writes go through the async queue, reads go straight
// to the stores. Job status transitions stream to WebSocket
// subscribers scoped to their own user id.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/graph"
	"github.com/teranos/OPTIX/history"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/repohist"
	"github.com/teranos/OPTIX/scip"
)

// OPTIXServer serves the code-intelligence HTTP API.
type OPTIXServer struct {
	db       *sql.DB
	cfg      *config.Config
	pool     *async.WorkerPool
	queue    *async.Queue
	resolver auth.Resolver

	graphBuilder *graph.Builder
	histStore    *history.Store
	blamer       *history.Blamer
	scipStore    *scip.Store
	repoStore    *repohist.Store

	spoolDir string // Where uploaded index artifacts land until their job consumes them

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// HTTP server with timeouts
	httpServer *http.Server

	// Lifecycle management
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64
	state          atomic.Int32

	logger *zap.SugaredLogger
}

// NewOPTIXServer creates the HTTP surface over an already-migrated
// database and a worker pool whose dispatcher is fully registered.
// resolver identifies callers; tokens hands git credentials to the
// blame path, which clones synchronously on behalf of the caller.
func NewOPTIXServer(db *sql.DB, cfg *config.Config, pool *async.WorkerPool, cache *repocache.Cache, resolver auth.Resolver, tokens auth.TokenSource, logger *zap.SugaredLogger) (*OPTIXServer, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("identity resolver cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &OPTIXServer{
		db:           db,
		cfg:          cfg,
		pool:         pool,
		queue:        pool.Queue(),
		resolver:     resolver,
		graphBuilder: graph.NewBuilder(graph.NewStore(db), logger),
		histStore:    history.NewStore(db),
		blamer:       history.NewBlamer(cache, tokens, logger),
		scipStore:    scip.NewStore(db),
		repoStore:    repohist.NewStore(db, logger),
		spoolDir:     os.TempDir(),
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}

	return s, nil
}

// Run starts the hub event loop that owns the client set and the
// queue subscription. Everything that mutates s.clients funnels
// through here or through removeSlowClient (hub-called only).
func (s *OPTIXServer) Run() {
	events := s.queue.Subscribe()
	defer s.queue.Unsubscribe(events)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		case job := <-events:
			s.fanOutJob(job)
		}
	}
}

// handleClientRegister handles a new client connection
func (s *OPTIXServer) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"user_id", client.userID,
		"total_clients", totalClients,
	)
}

// handleClientUnregister handles a client disconnection
func (s *OPTIXServer) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

// removeSlowClient drops a client whose send buffer is full. Only
// called from the hub goroutine.
func (s *OPTIXServer) removeSlowClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		return // Already removed
	}

	client.close()

	s.logger.Warnw("Client send channel full, removing client",
		"client_id", client.id,
		"total_drops", s.broadcastDrops.Load(),
	)
}

// fanOutJob pushes a job transition to every client owned by the
// job's user. Slow clients are dropped rather than allowed to stall
// the hub.
func (s *OPTIXServer) fanOutJob(job *async.Job) {
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		if client.userID == job.UserID {
			targets = append(targets, client)
		}
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(jobEvent{Type: "job_update", Job: job})
	if err != nil {
		s.logger.Warnw("Failed to encode job event", "job_id", job.ID, "error", err)
		return
	}

	for _, client := range targets {
		select {
		case client.send <- payload:
		default:
			s.broadcastDrops.Add(1)
			s.removeSlowClient(client)
		}
	}
}

// touchRepo records repository use for the enqueue endpoints. Bookkeeping
// failures are logged, never surfaced: the job is already queued.
func (s *OPTIXServer) touchRepo(ctx context.Context, userID int64, repoURL string) {
	if err := s.repoStore.Touch(ctx, userID, repoURL); err != nil {
		s.logger.Warnw("Failed to record repository use",
			"user_id", userID,
			"repo_url", repoURL,
			"error", err,
		)
	}
}

// getState returns the current server state
func (s *OPTIXServer) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *OPTIXServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
