package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show the ingestion status of a document",
	Long: `Reports whether the document is present in the vector index, whether an
ingestion is running in this process, and the most recent ingestion run.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	status, err := ingestionService.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Document:  %s\n", status.DocumentID)
	cmd.Printf("Indexed:   %s\n", yesNo(status.Present))
	cmd.Printf("Ingesting: %s\n", yesNo(status.InFlight))
	if status.Incomplete() {
		cmd.Println("Warning:   the last run did not finish; re-ingest with --force")
	}

	run := status.LastRun
	if run == nil {
		cmd.Println("Last run:  none")
		return nil
	}
	cmd.Println("Last run:")
	cmd.Printf("  ID:       %s\n", run.ID)
	cmd.Printf("  State:    %s\n", run.State)
	if run.Format != "" {
		cmd.Printf("  Format:   %s\n", run.Format)
	}
	cmd.Printf("  Chunks:   %d (%d uploaded)\n", run.Chunks, run.Uploaded)
	cmd.Printf("  Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		cmd.Printf("  Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
	}
	if run.State == domain.IngestionFailed && run.Error != "" {
		cmd.Printf("  Error:    %s\n", run.Error)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
