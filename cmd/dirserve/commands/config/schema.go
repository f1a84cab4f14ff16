package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/bytesize"
	"github.com/marmos91/dirserve/pkg/config"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for configuration",
	Long: `Generate a JSON schema for the dirserve configuration file.

The schema can be used for:
  - IDE autocompletion (VS Code, IntelliJ, etc.)
  - Configuration file validation

Examples:
  # Print schema to stdout
  dirserve config schema

  # Save schema to file
  dirserve config schema --output config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Output file (default: stdout)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	schemaJSON, err := generateSchema()
	if err != nil {
		return err
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	return nil
}

func generateSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
		Mapper:                    schemaTypeMapper,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "dirserve Configuration"
	schema.Description = "Configuration schema for the dirserve file server"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return schemaJSON, nil
}

// schemaTypeMapper describes the human-readable forms accepted for
// durations and byte sizes instead of their underlying integer types.
func schemaTypeMapper(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(time.Duration(0)):
		return &jsonschema.Schema{
			Type:        "string",
			Description: `Go duration such as "30s" or "5m"`,
		}
	case reflect.TypeOf(bytesize.ByteSize(0)):
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string", Description: `Size such as "1KiB" or "4KB"`},
				{Type: "integer", Minimum: json.Number("0")},
			},
		}
	default:
		return nil
	}
}
