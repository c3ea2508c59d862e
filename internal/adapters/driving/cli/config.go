package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/the-momentum/fhir-mcp-server/internal/config"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in config.toml.

Every key can also be overridden with an environment variable, for example
index.namespace is read from FHIR_MCP_INDEX_NAMESPACE.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with their effective values",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Long: `Stores a setting in config.toml. When the value is omitted for a
credential such as embedding.api_key it is read from stdin without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a stored setting so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(configStore.Path())
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	for _, key := range config.KnownKeys() {
		val, err := config.Value(configStore, key)
		if err != nil {
			return err
		}
		cmd.Printf("%-34s %s\n", key, display(key, val))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	val, err := config.Value(configStore, args[0])
	if err != nil {
		return err
	}
	cmd.Println(display(args[0], val))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !config.IsKnown(key) {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var raw string
	switch {
	case len(args) == 2:
		raw = args[1]
	case config.IsSecret(key):
		cmd.Printf("%s: ", key)
		raw = readSecret(cmd)
		cmd.Println()
	default:
		return fmt.Errorf("%w: a value is required for %s", domain.ErrInvalidInput, key)
	}

	val, err := config.ParseValue(key, raw)
	if err != nil {
		return err
	}
	if err := checkChoice(key, fmt.Sprint(val)); err != nil {
		return err
	}
	if err := configStore.Set(key, val); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, display(key, fmt.Sprint(val)))
	printHint(cmd, key, fmt.Sprint(val))
	return nil
}

// checkChoice rejects unknown values for enumerated settings.
func checkChoice(key, val string) error {
	switch key {
	case config.KeyEmbeddingProvider:
		if !domain.AIProvider(strings.ToLower(val)).IsValid() {
			return fmt.Errorf("%w: embedding provider %q, expected ollama or openai", domain.ErrInvalidInput, val)
		}
	case config.KeyIndexBackend:
		if !domain.IndexBackend(strings.ToLower(val)).IsValid() {
			names := make([]string, 0, len(domain.AllIndexBackends()))
			for _, b := range domain.AllIndexBackends() {
				names = append(names, b.String())
			}
			return fmt.Errorf("%w: index backend %q, expected one of %s",
				domain.ErrInvalidInput, val, strings.Join(names, ", "))
		}
	}
	return nil
}

// printHint explains the effect of a change on related settings.
func printHint(cmd *cobra.Command, key, val string) {
	switch key {
	case config.KeyEmbeddingProvider:
		p := domain.AIProvider(strings.ToLower(val))
		cmd.Printf("Embedding provider: %s\n", p.Description())
		if _, ok := configStore.Get(config.KeyEmbeddingModel); !ok {
			if model, ok := domain.DefaultEmbeddingModels()[p]; ok {
				cmd.Printf("Suggested model: fhir-mcp config set %s %s\n", config.KeyEmbeddingModel, model)
			}
		}
	case config.KeyEmbeddingModel:
		dims, ok := domain.EmbeddingDimensions()[val]
		if !ok {
			return
		}
		current, err := config.Value(configStore, config.KeyIndexDimension)
		if err == nil && current != fmt.Sprint(dims) {
			cmd.Printf("Note: %s produces %d-dimensional vectors; run: fhir-mcp config set %s %d\n",
				val, dims, config.KeyIndexDimension, dims)
		}
	case config.KeyIndexBackend:
		cmd.Printf("Index backend: %s\n", domain.IndexBackend(strings.ToLower(val)).Description())
	}
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := configStore.Unset(key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	cmd.Printf("%s reset to default\n", key)
	return nil
}

// display masks credentials and marks empty values.
func display(key, val string) string {
	switch {
	case val == "":
		return "(not set)"
	case config.IsSecret(key):
		return maskSecret(val)
	default:
		return val
	}
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(cmd *cobra.Command) string {
	// Try to read without echo
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(cmd.InOrStdin())
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
