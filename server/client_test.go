package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/OPTIX/pulse/async"
)

// waitForClients polls until the hub has registered the expected number
// of clients. Registration races the version handshake, so tests wait
// here before enqueuing anything.
func waitForClients(t *testing.T, srv *OPTIXServer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.mu.RLock()
		n := len(srv.clients)
		srv.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Hub never reached %d clients", want)
}

func dialWS(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-ID", userID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestWebSocketJobStream verifies the full path: connect, handshake,
// enqueue, receive the owner-scoped job event. Events for other users
// must never arrive.
func TestWebSocketJobStream(t *testing.T) {
	srv := newTestServer(t)

	go srv.Run()
	defer srv.cancel()

	testServer := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer testServer.Close()

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	conn := dialWS(t, wsURL, "7")

	// First frame is the version handshake
	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read version message: %v", err)
	}
	if hello["type"] != "version" {
		t.Fatalf("First message type = %v, want version", hello["type"])
	}

	waitForClients(t, srv, 1)

	// A foreign user's job must not reach this client
	foreignJob, _ := async.NewJob(8, "https://github.com/acme/other.git", async.KindGitMine)
	if err := srv.queue.Enqueue(context.Background(), foreignJob); err != nil {
		t.Fatalf("Failed to enqueue foreign job: %v", err)
	}

	ownJob, _ := async.NewJob(7, "https://github.com/acme/widget.git", async.KindGraphBuild)
	if err := srv.queue.Enqueue(context.Background(), ownJob); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event jobEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read job event: %v", err)
	}

	if event.Type != "job_update" {
		t.Errorf("Event type = %q, want job_update", event.Type)
	}
	if event.Job == nil {
		t.Fatal("Event carries no job")
	}
	if event.Job.ID != ownJob.ID {
		t.Errorf("Event job ID = %d, want %d (the foreign job must be filtered)", event.Job.ID, ownJob.ID)
	}
	if event.Job.UserID != 7 {
		t.Errorf("Event job user = %d, want 7", event.Job.UserID)
	}
}

// TestWebSocketRequiresIdentity verifies the upgrade is refused before
// any WebSocket handshake when the caller carries no identity.
func TestWebSocketRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	testServer := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Expected dial to fail without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Handshake response = %+v, want 401", resp)
	}
}

// TestWebSocketStatusTransitions verifies MarkDone transitions stream to
// the subscriber, not just the initial enqueue.
func TestWebSocketStatusTransitions(t *testing.T) {
	srv := newTestServer(t)

	go srv.Run()
	defer srv.cancel()

	testServer := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")
	conn := dialWS(t, wsURL, "7")

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read version message: %v", err)
	}
	waitForClients(t, srv, 1)

	ctx := context.Background()
	job, _ := async.NewJob(7, "https://github.com/acme/widget.git", async.KindGraphBuild)
	if err := srv.queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	claimed, err := srv.queue.Claim(ctx, async.KindGraphBuild)
	if err != nil || claimed == nil {
		t.Fatalf("Failed to claim job: %v", err)
	}
	if err := srv.queue.MarkDone(ctx, claimed); err != nil {
		t.Fatalf("Failed to mark job done: %v", err)
	}

	statuses := []async.JobStatus{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(statuses) < 3 {
		var event jobEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("Failed to read job event after %d: %v", len(statuses), err)
		}
		statuses = append(statuses, event.Job.Status)
	}

	want := []async.JobStatus{async.JobStatusPending, async.JobStatusProcessing, async.JobStatusDone}
	for i, status := range want {
		if statuses[i] != status {
			t.Errorf("Transition %d = %q, want %q", i, statuses[i], status)
		}
	}
}

func TestIsPortAvailable(t *testing.T) {
	port, err := findAvailablePort(54871)
	if err != nil {
		t.Fatalf("findAvailablePort: %v", err)
	}
	if port < 54871 || port > 54881 {
		t.Errorf("Port %d outside requested range", port)
	}
}

// Encoding shape of the event frame is part of the wire contract with
// the explorer frontend.
func TestJobEventEncoding(t *testing.T) {
	job, _ := async.NewJob(7, "https://github.com/acme/widget.git", async.KindGitMine)
	job.ID = 9

	payload, err := json.Marshal(jobEvent{Type: "job_update", Job: job})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, field := range []string{`"type":"job_update"`, `"id":9`, `"kind":"git_mine"`, `"status":"pending"`} {
		if !strings.Contains(string(payload), field) {
			t.Errorf("Event %s missing %s", payload, field)
		}
	}
}
