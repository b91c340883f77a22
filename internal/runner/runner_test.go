package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/securerpc/tlsmatrix/internal/credentials"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/probe"
	"github.com/securerpc/tlsmatrix/internal/scenario"
)

// =============================================================================
// Matrix Execution Tests
// =============================================================================

// TestF_Run_FullMatrix executes every legal scenario with no filter and
// demands complete settlement: nothing skipped, every prediction holds.
func TestF_Run_FullMatrix(t *testing.T) {
	r := New(Options{Workers: 8, Timeout: 10 * time.Second})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Results) != scenario.LegalCount {
		t.Fatalf("result count = %d, want %d", len(report.Results), scenario.LegalCount)
	}
	for _, res := range report.Results {
		if res.Status != StatusPassed {
			t.Errorf("%s: status = %s (%s), outcome %s",
				res.ID, res.Status, res.Reason, res.Outcome.Disposition)
		}
	}
	if report.Passed != scenario.LegalCount || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("tally = %d passed, %d failed, %d skipped, want %d passed only",
			report.Passed, report.Failed, report.Skipped, scenario.LegalCount)
	}
}

// TestF_Run_PositiveScenarios drives every scenario predicted to accept
// through a real handshake.
func TestF_Run_PositiveScenarios(t *testing.T) {
	r := New(Options{
		Workers: 8,
		Timeout: 10 * time.Second,
		Filter: scenario.Filter{
			Corruptions: []scenario.Corruption{scenario.CorruptNone},
			Mismatches:  []scenario.Mismatch{scenario.MismatchNone},
		},
	})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// One plaintext, six server-only, twelve mutual.
	if len(report.Results) != 19 {
		t.Fatalf("result count = %d, want 19", len(report.Results))
	}
	if report.Failed != 0 {
		for _, res := range report.Results {
			if res.Status == StatusFailed {
				t.Errorf("%s: %s", res.ID, res.Reason)
			}
		}
	}
	if report.Passed != 19 {
		t.Errorf("passed = %d, want 19", report.Passed)
	}
	if !report.OK() {
		t.Error("report should be OK with zero failures")
	}
}

// TestF_Run_NegativeScenarios drives a slice of the rejection space:
// every mismatch scenario at root depth.
func TestF_Run_NegativeScenarios(t *testing.T) {
	r := New(Options{
		Workers: 8,
		Timeout: 10 * time.Second,
		Filter: scenario.Filter{
			Signers:     []scenario.Signer{scenario.SignerRoot},
			Corruptions: []scenario.Corruption{scenario.CorruptNone},
			Mismatches:  []scenario.Mismatch{scenario.MismatchServerName, scenario.MismatchClientName},
		},
	})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Results) == 0 {
		t.Fatal("filter selected no scenarios")
	}
	for _, res := range report.Results {
		if res.Status != StatusPassed {
			t.Errorf("%s: status = %s (%s)", res.ID, res.Status, res.Reason)
		}
		if res.Expected == scenario.VerdictAccept {
			t.Errorf("%s: mismatch scenario should not predict acceptance", res.ID)
		}
	}
}

func TestF_Run_CorruptionScenarios_RootDepth(t *testing.T) {
	r := New(Options{
		Workers: 8,
		Timeout: 10 * time.Second,
		Filter: scenario.Filter{
			Signers:     []scenario.Signer{scenario.SignerRoot},
			Corruptions: []scenario.Corruption{scenario.CorruptRoot, scenario.CorruptServer},
		},
	})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Results) == 0 {
		t.Fatal("filter selected no scenarios")
	}
	for _, res := range report.Results {
		if res.Expected != scenario.VerdictRejectHandshake {
			t.Errorf("%s: expected verdict = %s", res.ID, res.Expected)
		}
		if res.Status != StatusPassed {
			t.Errorf("%s: status = %s (%s), outcome %s", res.ID, res.Status, res.Reason, res.Outcome.Disposition)
		}
	}
}

// TestF_Run_CorruptIntermediate_MutualHost pins the deepest corruption
// case: a mutual handshake under an intermediate-signed hierarchy whose
// intermediate key was swapped must fail at the handshake.
func TestF_Run_CorruptIntermediate_MutualHost(t *testing.T) {
	r := New(Options{
		Workers: 1,
		Timeout: 10 * time.Second,
		Filter: scenario.Filter{
			Parties:     []scenario.Parties{scenario.PartiesMutual},
			Signers:     []scenario.Signer{scenario.SignerIntermediate},
			Namings:     []scenario.Naming{scenario.NamingHost},
			ClientCheck: []scenario.ClientCheck{scenario.ClientCheckDisabled},
			Corruptions: []scenario.Corruption{scenario.CorruptIntermediate},
			Mismatches:  []scenario.Mismatch{scenario.MismatchNone},
		},
	})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("result count = %d, want 1", len(report.Results))
	}

	res := report.Results[0]
	if res.Expected != scenario.VerdictRejectHandshake {
		t.Errorf("expected verdict = %s, want %s", res.Expected, scenario.VerdictRejectHandshake)
	}
	if res.Status != StatusPassed {
		t.Errorf("status = %s (%s), outcome %s", res.Status, res.Reason, res.Outcome.Disposition)
	}
	if !res.Outcome.Matches(scenario.VerdictRejectHandshake) {
		t.Errorf("outcome %s does not reject the handshake", res.Outcome.Disposition)
	}
}

// =============================================================================
// Bookkeeping Tests
// =============================================================================

func TestU_ConfigureStatus(t *testing.T) {
	wrapped := fmt.Errorf("credentials: %w", credentials.ErrIncompatibleScenario)
	if got := configureStatus(wrapped); got != StatusSkipped {
		t.Errorf("configureStatus(incompatible) = %s, want %s", got, StatusSkipped)
	}

	// Any other construction error is a scenario failure, never a skip.
	build := errors.New("hierarchy: failed to build server leaf")
	if got := configureStatus(build); got != StatusFailed {
		t.Errorf("configureStatus(build error) = %s, want %s", got, StatusFailed)
	}
}

func TestU_Run_ObserverSeesEveryResult(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]Status)

	r := New(Options{
		Algorithm: keystore.AlgECDSAP256,
		Workers:   4,
		Timeout:   10 * time.Second,
		Filter: scenario.Filter{
			Parties:     []scenario.Parties{scenario.PartiesServer},
			Signers:     []scenario.Signer{scenario.SignerSelf},
			Corruptions: []scenario.Corruption{scenario.CorruptNone},
		},
		Observer: func(res Result) {
			mu.Lock()
			seen[res.ID] = res.Status
			mu.Unlock()
		},
	})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seen) != len(report.Results) {
		t.Errorf("observer saw %d results, report has %d", len(seen), len(report.Results))
	}
	for _, res := range report.Results {
		if seen[res.ID] != res.Status {
			t.Errorf("%s: observer status %s, report status %s", res.ID, seen[res.ID], res.Status)
		}
	}
}

func TestU_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Options{Workers: 2, Timeout: time.Second})
	report, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Passed != 0 || report.Failed != 0 {
		t.Errorf("cancelled run settled scenarios: %d passed, %d failed", report.Passed, report.Failed)
	}
	if report.Skipped != len(report.Results) {
		t.Errorf("skipped = %d, want all %d", report.Skipped, len(report.Results))
	}
	for _, res := range report.Results {
		if res.Status != StatusSkipped {
			t.Errorf("%s: status = %s, want skipped", res.ID, res.Status)
		}
	}
}

func TestU_Run_DefaultsApplied(t *testing.T) {
	r := New(Options{})
	if r.opts.Workers != defaultWorkers {
		t.Errorf("Workers = %d, want %d", r.opts.Workers, defaultWorkers)
	}
	if r.opts.Algorithm != keystore.DefaultAlgorithm {
		t.Errorf("Algorithm = %s, want default", r.opts.Algorithm)
	}
}

func TestU_Result_ErrorOutcomeFails(t *testing.T) {
	// A harness error must fail the scenario even when the verdict is a
	// rejection.
	out := probe.Outcome{Disposition: probe.DispositionError, Reason: "listen: denied"}
	if out.Matches(scenario.VerdictRejectHandshake) {
		t.Error("harness error must not satisfy any verdict")
	}
}
