package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Event Tests
// =============================================================================

func TestU_Event_Validate(t *testing.T) {
	e := NewEvent(EventRunStarted, ResultSuccess)
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := &Event{}
	if err := bad.Validate(); err == nil {
		t.Error("empty event should not validate")
	}
}

func TestU_Event_CanonicalJSONExcludesHash(t *testing.T) {
	e := NewEvent(EventScenarioExecuted, ResultSuccess).WithContext(Context{
		Scenario: "auth=mutual,signer=root",
		Status:   "passed",
	})
	e.Hash = "sha256:deadbeef"

	canonical, err := e.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if strings.Contains(string(canonical), "deadbeef") {
		t.Error("canonical form must not include the event's own hash")
	}
	if !strings.Contains(string(canonical), "auth=mutual,signer=root") {
		t.Error("canonical form must include the context")
	}
}

// =============================================================================
// Hash Chain Tests
// =============================================================================

func TestF_FileWriter_ChainAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	if w.LastHash() != GenesisHash {
		t.Errorf("LastHash() = %s, want genesis", w.LastHash())
	}

	events := []*Event{
		NewEvent(EventRunStarted, ResultSuccess).WithContext(Context{Algorithm: "ecdsa-p256"}),
		NewEvent(EventScenarioExecuted, ResultSuccess).WithContext(Context{
			Scenario: "auth=server,signer=self", Expected: "accept", Observed: "accepted", Status: "passed",
		}),
		NewEvent(EventRunCompleted, ResultSuccess).WithContext(Context{Passed: 1}),
	}
	for _, e := range events {
		if err := w.Write(e); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	n, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if n != 3 {
		t.Errorf("verified events = %d, want 3", n)
	}
}

func TestF_FileWriter_ChainContinuesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	if err := w.Write(NewEvent(EventRunStarted, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	first := w.LastHash()
	w.Close()

	w, err = NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() reopen error = %v", err)
	}
	if w.LastHash() != first {
		t.Errorf("reopened LastHash() = %s, want %s", w.LastHash(), first)
	}
	if err := w.Write(NewEvent(EventRunCompleted, ResultSuccess)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Close()

	if n, err := VerifyChain(path); err != nil || n != 2 {
		t.Errorf("VerifyChain() = %d, %v, want 2 valid events", n, err)
	}
}

func TestU_VerifyChain_DetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Write(NewEvent(EventScenarioExecuted, ResultSuccess)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	tampered := strings.Replace(string(data), `"result":"success"`, `"result":"failure"`, 1)
	if tampered == string(data) {
		t.Fatal("tampering substitution did not apply")
	}
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := VerifyChain(path); err == nil {
		t.Error("VerifyChain() should detect a modified event")
	}
}

func TestU_NopWriter(t *testing.T) {
	var w Writer = NopWriter{}
	if err := w.Write(NewEvent(EventRunStarted, ResultSuccess)); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if w.LastHash() != GenesisHash {
		t.Errorf("LastHash() = %s, want genesis", w.LastHash())
	}
}
