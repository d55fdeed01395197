package commands

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid reports a config file that failed schema validation.
var ErrConfigInvalid = errors.New("configuration is invalid")

// configSchemaFS contains the embedded configuration JSON schema.
//
//go:embed schema.json
var configSchemaFS embed.FS

// NewConfigCommand creates the config command group.
func NewConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate ccr configuration",
	}

	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigValidateCommand(app),
	)

	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging built-in defaults, the config
file, and CCR_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(app.Config)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			_, writeErr := cmd.OutOrStdout().Write(data)
			if writeErr != nil {
				return fmt.Errorf("write config: %w", writeErr)
			}

			return nil
		},
	}
}

func newConfigValidateCommand(_ *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file against the built-in schema",
		Long: `Validate a YAML config file against the embedded JSON schema.

Examples:
  ccr config validate .ccr.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, args[0])
		},
	}
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc any

	unmarshalErr := yaml.Unmarshal(data, &doc)
	if unmarshalErr != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, unmarshalErr)
	}

	// An empty file is a valid config; YAML decodes it as null.
	if doc == nil {
		doc = map[string]any{}
	}

	schemaBytes, err := configSchemaFS.ReadFile("schema.json")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	out := cmd.OutOrStdout()

	if result.Valid() {
		color.New(color.FgGreen).Fprintf(out, "%s is valid\n", path)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "%s is invalid\n", path)

	for _, verr := range result.Errors() {
		color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", verr.Field(), verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrConfigInvalid, path)
}
