// Command fhir-mcp ingests documents referenced by clinical records and
// serves passage search to MCP agents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driving/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
