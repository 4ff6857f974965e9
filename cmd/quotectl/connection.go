package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dongwonkwak/erpquote/internal/diagnostics"
)

var errDiagnosticsFailed = errors.New("diagnostics failed")

func newConnectionCmd(g *globalFlags) *cobra.Command {
	connCmd := &cobra.Command{
		Use:   "connection",
		Short: "Check the ERP connection",
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Make one authenticated call",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			return runConnectionTest(ctx, cmd.OutOrStdout(), e.diagnostics())
		}),
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the connection state and server version",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			return runConnectionStatus(ctx, cmd.OutOrStdout(), e.diagnostics(), statusJSON)
		}),
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print as JSON")

	var diagJSON bool
	diagnoseCmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run every connection probe and print a report",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			return runDiagnose(ctx, cmd.OutOrStdout(), e.diagnostics(), diagJSON)
		}),
	}
	diagnoseCmd.Flags().BoolVar(&diagJSON, "json", false, "Print the report as JSON")

	connCmd.AddCommand(testCmd, statusCmd, diagnoseCmd)
	return connCmd
}

func runConnectionTest(ctx context.Context, w io.Writer, r *diagnostics.Runner) error {
	if err := r.TestConnection(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Connection OK.")
	return nil
}

func runConnectionStatus(ctx context.Context, w io.Writer, r *diagnostics.Runner, asJSON bool) error {
	st := r.Status(ctx)
	if asJSON {
		return writeJSON(w, st)
	}

	fmt.Fprintf(w, "Connected: %t\n", st.Connected)
	fmt.Fprintf(w, "Message:   %s\n", st.Message)
	if st.ServerVersion != "" {
		fmt.Fprintf(w, "Version:   %s\n", st.ServerVersion)
	}
	fmt.Fprintf(w, "Checked:   %s\n", st.CheckedAt.Format(time.RFC3339))
	return nil
}

// runDiagnose prints the report and fails when the authenticated call did.
func runDiagnose(ctx context.Context, w io.Writer, r *diagnostics.Runner, asJSON bool) error {
	rep := r.Diagnose(ctx)
	if asJSON {
		if err := writeJSON(w, rep); err != nil {
			return err
		}
	} else {
		printReport(w, rep)
	}
	if !rep.Success {
		return errDiagnosticsFailed
	}
	return nil
}

func printReport(w io.Writer, rep *diagnostics.Report) {
	fmt.Fprintf(w, "=== Diagnostics %s ===\n", rep.ID)
	fmt.Fprintf(w, "URL:      %s\n", rep.Config.URL)
	fmt.Fprintf(w, "Database: %s\n", rep.Config.Database)
	fmt.Fprintf(w, "User ID:  %d\n", rep.Config.UserID)
	fmt.Fprintf(w, "API key:  %s\n", rep.Config.APIKey)
	fmt.Fprintln(w)

	for _, t := range rep.Tests {
		mark := "PASS"
		detail := t.Sample
		if !t.Success {
			mark, detail = "FAIL", t.Error
		}
		fmt.Fprintf(w, "[%s] %-15s %-8s %s\n", mark, t.Name, t.Duration.Round(time.Millisecond), detail)
	}

	fmt.Fprintln(w)
	if rep.Success {
		fmt.Fprintln(w, "Result: OK")
	} else {
		fmt.Fprintf(w, "Result: FAILED (%d errors)\n", len(rep.Errors))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
