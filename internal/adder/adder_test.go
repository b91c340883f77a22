package adder

import (
	"errors"
	"net"
	"testing"
)

// =============================================================================
// Wire Protocol Tests
// =============================================================================

func TestU_Adder_CallAndServe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Serve(server, "") }()

	if err := Call(client); err != nil {
		t.Errorf("Call() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestU_Adder_Refusal(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- Serve(server, "client identity not allowed") }()

	err := Call(client)
	var refused *RefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("Call() error = %v, want RefusedError", err)
	}
	if refused.Reason != "client identity not allowed" {
		t.Errorf("Reason = %q", refused.Reason)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestU_Adder_OversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		// A frame header claiming more than the limit.
		server.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}()

	var reply Reply
	if err := ReadMessage(client, &reply); err == nil {
		t.Error("ReadMessage() should reject an oversized frame")
	}
}
