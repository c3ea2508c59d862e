package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

var (
	ingestDocumentID string
	ingestFormat     string
	ingestForce      bool
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [url]",
	Short: "Ingest a document into the vector index",
	Long: `Downloads the document at the URL, extracts its text, splits it into
passages, embeds them and uploads them to the vector index.

A document already present in the index is skipped unless --force is given.
The format is taken from --format, then the response Content-Type, then the
URL extension. Supported formats: pdf, txt, csv, json.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDocumentID, "document-id", "d", "", "document identifier (required)")
	ingestCmd.Flags().StringVarP(&ingestFormat, "format", "f", "", "declared format: pdf, txt, csv or json")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest even if already present")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	_ = ingestCmd.MarkFlagRequired("document-id")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	format := domain.Format(ingestFormat)
	if ingestFormat != "" {
		parsed, ok := domain.ParseFormat(ingestFormat)
		if !ok {
			return fmt.Errorf("%w: format %q, expected pdf, txt, csv or json",
				domain.ErrUnsupportedFormat, ingestFormat)
		}
		format = parsed
	}

	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	result, err := ingestionService.Ingest(cmd.Context(), domain.IngestRequest{
		Document: domain.Document{
			SourceURL: args[0],
			ID:        ingestDocumentID,
			Format:    format,
		},
		Force: ingestForce,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	switch result.Outcome {
	case domain.IngestOutcomeAlreadyPresent:
		cmd.Printf("Document %s is already indexed. Use --force to re-ingest.\n", result.DocumentID)
	default:
		cmd.Printf("Ingested document %s: %d chunks\n", result.DocumentID, result.Chunks)
		if result.RunID != "" {
			cmd.Printf("  Run: %s\n", result.RunID)
		}
	}
	return nil
}
