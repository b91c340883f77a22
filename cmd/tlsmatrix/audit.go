package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/audit"
)

var auditVerifyLog string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain of a run audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := audit.VerifyChain(auditVerifyLog)
		if err != nil {
			return fmt.Errorf("chain broken after %d valid events: %w", n, err)
		}
		fmt.Printf("%d events, chain intact\n", n)
		return nil
	},
}

func init() {
	auditVerifyCmd.Flags().StringVar(&auditVerifyLog, "log", "", "Audit log file (required)")
	_ = auditVerifyCmd.MarkFlagRequired("log")

	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}
