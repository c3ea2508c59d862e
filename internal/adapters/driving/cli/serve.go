package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driving/mcp"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing the add_document, search
and document_status tools.

By default the server communicates over stdio and can be launched by any
MCP-compatible agent. Use --port to serve streamable HTTP instead, which
also exposes /healthz and Prometheus metrics on /metrics.

Examples:
  # Stdio mode
  fhir-mcp serve

  # HTTP mode
  fhir-mcp serve --port 8080

Agent configuration:
  {
    "mcpServers": {
      "fhir-documents": {
        "command": "/path/to/fhir-mcp",
        "args": ["serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (0 = use stdio)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Ingestion: ingestionService,
		Query:     queryService,
	})
	if err != nil {
		return err
	}

	if servePort > 0 {
		addr := fmt.Sprintf(":%d", servePort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(cmd.Context(), addr, mcp.HTTPOptions{Metrics: metricsHandler})
	}

	return server.Run(cmd.Context())
}
