package signalsrv

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func postSignal(t *testing.T, port int, path, pane string) {
	t.Helper()
	resp, err := http.PostForm(fmt.Sprintf("http://127.0.0.1:%d%s", port, path), url.Values{"pane": {pane}})
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: status %d, want 200", path, resp.StatusCode)
	}
}

func TestRegisterAndWaitForComplete(t *testing.T) {
	srv, err := Start(58201)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	srv.Register("%3")
	done := make(chan bool, 1)
	go func() { done <- srv.WaitForComplete("%3", 2*time.Second) }()

	postSignal(t, srv.Port, "/complete", "%3")

	if !<-done {
		t.Fatal("WaitForComplete returned false after signal fired")
	}
}

func TestWaitForCompleteTimesOutWithoutSignal(t *testing.T) {
	srv, err := Start(58202)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	srv.Register("%4")
	if srv.WaitForComplete("%4", 50*time.Millisecond) {
		t.Fatal("expected timeout (false) when no signal is fired")
	}
}

func TestWaitOnUnregisteredPaneReturnsFalseImmediately(t *testing.T) {
	srv, err := Start(58203)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	start := time.Now()
	if srv.WaitForComplete("%999", 5*time.Second) {
		t.Fatal("expected false for an unregistered pane")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait on unregistered pane took %v, want near-immediate", elapsed)
	}
}

func TestEventsAreOneShot(t *testing.T) {
	srv, err := Start(58204)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	srv.Register("%5")
	postSignal(t, srv.Port, "/complete", "%5")
	postSignal(t, srv.Port, "/complete", "%5") // firing twice must not panic (sync.Once)

	if !srv.WaitForComplete("%5", time.Second) {
		t.Fatal("expected complete event to have fired")
	}
}

func TestMalformedAndUnregisteredPaneAreSilentlyIgnored(t *testing.T) {
	srv, err := Start(58205)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	postSignal(t, srv.Port, "/complete", "not-a-pane-id")
	postSignal(t, srv.Port, "/complete", "%123456") // well-formed but never registered
}

func TestUnregisterRemovesPane(t *testing.T) {
	srv, err := Start(58206)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	srv.Register("%6")
	srv.Unregister("%6")
	if srv.WaitForComplete("%6", 50*time.Millisecond) {
		t.Fatal("expected false after unregistering the pane")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, err := Start(58207)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", srv.Port))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

// Scenario 6: when the requested port is already held by another listener, Start scans
// forward and binds within (requestedPort, requestedPort+MaxPortScan].
func TestStartFallsBackWhenRequestedPortIsHeld(t *testing.T) {
	const requested = 58208
	blocker, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", requested))
	if err != nil {
		t.Fatalf("holding port: %v", err)
	}
	defer blocker.Close()

	srv, err := Start(requested)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	if srv.Port <= requested || srv.Port > requested+MaxPortScan {
		t.Fatalf("Port = %d, want in (%d, %d]", srv.Port, requested, requested+MaxPortScan)
	}
}
