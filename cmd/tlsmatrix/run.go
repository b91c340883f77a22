package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/audit"
	"github.com/securerpc/tlsmatrix/internal/config"
	"github.com/securerpc/tlsmatrix/internal/runner"
	"github.com/securerpc/tlsmatrix/internal/scenario"
	"github.com/securerpc/tlsmatrix/internal/store"
)

// Run command flags
var (
	runProfilePath string
	runWorkers     int
	runTimeout     string
	runAlgorithm   string
	runAuditLog    string
	runArtifacts   string
	runJSON        bool

	runParties     []string
	runSigners     []string
	runNamings     []string
	runClientCheck []string
	runCorruptions []string
	runMismatches  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the authentication test matrix",
	Long: `Execute the authentication test matrix.

Every legal scenario passing the filter is driven through a real
loopback connection attempt and compared against its predicted verdict.
The command exits non-zero if any scenario misbehaves.

Examples:
  # Full matrix with defaults
  tlsmatrix run

  # Only corruption scenarios, quickly
  tlsmatrix run --corruptions server,client,root,intermediate --timeout 2s

  # A profile plus an audit trail and saved report
  tlsmatrix run --profile profiles/quick.yaml --audit-log run.jsonl --artifacts ./out`,
	RunE: runMatrix,
}

func init() {
	runCmd.Flags().StringVar(&runProfilePath, "profile", "", "Run profile YAML file")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent connection attempts (overrides profile)")
	runCmd.Flags().StringVar(&runTimeout, "timeout", "", "Per-attempt timeout, e.g. 5s (overrides profile)")
	runCmd.Flags().StringVar(&runAlgorithm, "algorithm", "", "Key algorithm: ecdsa-p256, ed25519, rsa-2048")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Append hash-chained run events to this JSONL file")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "Save the run report under this directory")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the full report as JSON")

	runCmd.Flags().StringSliceVar(&runParties, "parties", nil, "Filter: authenticated parties (none, server, mutual)")
	runCmd.Flags().StringSliceVar(&runSigners, "signers", nil, "Filter: signer depth (self, root, intermediate)")
	runCmd.Flags().StringSliceVar(&runNamings, "namings", nil, "Filter: server naming (host, service)")
	runCmd.Flags().StringSliceVar(&runClientCheck, "client-check", nil, "Filter: client name check (disabled, enabled)")
	runCmd.Flags().StringSliceVar(&runCorruptions, "corruptions", nil, "Filter: corrupted key (none, server, client, root, intermediate)")
	runCmd.Flags().StringSliceVar(&runMismatches, "mismatches", nil, "Filter: name mismatch (none, server-name, client-name)")

	rootCmd.AddCommand(runCmd)
}

func runMatrix(cmd *cobra.Command, args []string) error {
	profile, err := loadRunProfile()
	if err != nil {
		return err
	}

	backend, err := newLogBackend()
	if err != nil {
		return err
	}
	defer backend.Close()
	log := backend.GetLogger("runner")

	var auditW audit.Writer = audit.NopWriter{}
	if profile.AuditLog != "" {
		fw, err := audit.NewFileWriter(profile.AuditLog)
		if err != nil {
			return err
		}
		auditW = fw
	}
	defer auditW.Close()

	if err := auditW.Write(audit.NewEvent(audit.EventRunStarted, audit.ResultSuccess).
		WithContext(audit.Context{Algorithm: profile.Algorithm})); err != nil {
		return err
	}

	var auditErr error
	observer := func(res runner.Result) {
		result := audit.ResultSuccess
		if res.Status == runner.StatusFailed {
			result = audit.ResultFailure
		}
		err := auditW.Write(audit.NewEvent(audit.EventScenarioExecuted, result).
			WithContext(audit.Context{
				Scenario: res.ID,
				Expected: string(res.Expected),
				Observed: string(res.Outcome.Disposition),
				Status:   string(res.Status),
				Reason:   res.Reason,
			}))
		if err != nil && auditErr == nil {
			auditErr = err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.New(runner.Options{
		Algorithm:    profile.AlgorithmID(),
		Organization: profile.Organization,
		Names:        profile.IdentityNames(),
		Workers:      profile.Workers,
		Timeout:      profile.TimeoutDuration(),
		Filter:       profile.Filter,
		Observer:     observer,
		Log:          log,
	}).Run(ctx)
	if err != nil {
		return err
	}

	completion := audit.ResultSuccess
	if !report.OK() {
		completion = audit.ResultFailure
	}
	if err := auditW.Write(audit.NewEvent(audit.EventRunCompleted, completion).
		WithContext(audit.Context{
			Algorithm: profile.Algorithm,
			Passed:    report.Passed,
			Failed:    report.Failed,
			Skipped:   report.Skipped,
		})); err != nil {
		return err
	}
	if auditErr != nil {
		return fmt.Errorf("audit write failed during run: %w", auditErr)
	}

	if profile.ArtifactDir != "" {
		st := store.NewStore(profile.ArtifactDir)
		if err := st.Init(); err != nil {
			return err
		}
		if err := st.SaveReport(report); err != nil {
			return err
		}
		log.Infof("report saved to %s", st.ReportPath())
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printSummary(report)
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d scenarios failed", report.Failed, len(report.Results))
	}
	return nil
}

// loadRunProfile loads the profile and applies flag overrides.
func loadRunProfile() (*config.Profile, error) {
	profile := config.Default()
	if runProfilePath != "" {
		p, err := config.Load(runProfilePath)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	if runWorkers > 0 {
		profile.Workers = runWorkers
	}
	if runTimeout != "" {
		profile.Timeout = runTimeout
	}
	if runAlgorithm != "" {
		profile.Algorithm = runAlgorithm
	}
	if runAuditLog != "" {
		profile.AuditLog = runAuditLog
	}
	if runArtifacts != "" {
		profile.ArtifactDir = runArtifacts
	}
	if f := filterFromFlags(); !filterIsZero(f) {
		profile.Filter = f
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func filterFromFlags() scenario.Filter {
	var f scenario.Filter
	for _, s := range runParties {
		f.Parties = append(f.Parties, scenario.Parties(s))
	}
	for _, s := range runSigners {
		f.Signers = append(f.Signers, scenario.Signer(s))
	}
	for _, s := range runNamings {
		f.Namings = append(f.Namings, scenario.Naming(s))
	}
	for _, s := range runClientCheck {
		f.ClientCheck = append(f.ClientCheck, scenario.ClientCheck(s))
	}
	for _, s := range runCorruptions {
		f.Corruptions = append(f.Corruptions, scenario.Corruption(s))
	}
	for _, s := range runMismatches {
		f.Mismatches = append(f.Mismatches, scenario.Mismatch(s))
	}
	return f
}

func filterIsZero(f scenario.Filter) bool {
	return len(f.Parties) == 0 && len(f.Signers) == 0 && len(f.Namings) == 0 &&
		len(f.ClientCheck) == 0 && len(f.Corruptions) == 0 && len(f.Mismatches) == 0
}

func printSummary(report *runner.Report) {
	for _, res := range report.Results {
		if res.Status == runner.StatusPassed {
			continue
		}
		fmt.Printf("%-8s %s", res.Status, res.ID)
		if res.Reason != "" {
			fmt.Printf("  (%s)", res.Reason)
		}
		fmt.Println()
	}
	fmt.Printf("%d scenarios: %d passed, %d failed, %d skipped (%s)\n",
		len(report.Results), report.Passed, report.Failed, report.Skipped,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
